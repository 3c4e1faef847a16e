package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCoordinatorDefaults(t *testing.T) {
	cfg, err := LoadCoordinator("")
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, 1024, cfg.BroadcastQueueCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceWindow)
}

func TestLoadCoordinatorFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 9000
max_users_per_rift = 8

[enable_feature]
chat = true
`), 0o644))

	cfg, err := LoadCoordinator(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 8, cfg.MaxUsersPerRift)
	assert.True(t, cfg.EnableChat)
}

func TestLoadCoordinatorEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.toml")
	require.NoError(t, os.WriteFile(path, []byte(`port = 9000`), 0o644))

	t.Setenv("RIFT_PORT", "9500")

	cfg, err := LoadCoordinator(path)
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.Port)
}

func TestLoadDaemonDefaults(t *testing.T) {
	cfg, err := LoadDaemon("")
	require.NoError(t, err)
	assert.Equal(t, 7525, cfg.IPCPort)
	assert.Equal(t, 150*time.Millisecond, cfg.DebounceWindow)
	assert.Contains(t, cfg.IgnorePatterns, ".git")
}
