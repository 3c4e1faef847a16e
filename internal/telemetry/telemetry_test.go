package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/store/teststore"
)

func TestDisabledByDefault(t *testing.T) {
	t.Setenv("RIFT_OTEL_ENABLED", "")
	assert.False(t, Enabled())
}

func TestInitNoopWhenDisabled(t *testing.T) {
	t.Setenv("RIFT_OTEL_ENABLED", "")
	require.NoError(t, Init(context.Background(), "rift-coordinator", "test"))
	Shutdown(context.Background())
}

func TestWrapPassesThroughWhenDisabled(t *testing.T) {
	t.Setenv("RIFT_OTEL_ENABLED", "")
	inner := teststore.New(t)
	wrapped := Wrap(inner)
	assert.Same(t, inner, wrapped)
}
