package spawn

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunningForCurrentProcess(t *testing.T) {
	assert.True(t, IsRunning(os.Getpid()))
}

func TestIsRunningFalseForImplausiblePID(t *testing.T) {
	// PID 1 always exists on a real system, so use a value far beyond any
	// realistic allocation instead of asserting about init.
	assert.False(t, IsRunning(1<<30))
}

func TestStartAndStopSleepProcess(t *testing.T) {
	pid, err := Start("/bin/sleep", []string{"30"}, nil)
	require.NoError(t, err)
	assert.True(t, IsRunning(pid))

	require.NoError(t, Stop(pid))
}
