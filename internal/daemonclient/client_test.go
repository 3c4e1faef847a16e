package daemonclient

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/daemon"
)

func TestClientHealthAndStatus(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := daemon.New(config.DefaultDaemon(), log)
	ts := httptest.NewServer(d.Handler())
	defer ts.Close()

	c := New(ts.URL)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	tracked, err := c.ListTracked(ctx)
	require.NoError(t, err)
	assert.Empty(t, tracked)
}
