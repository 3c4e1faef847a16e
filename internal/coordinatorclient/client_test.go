package coordinatorclient

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/blobstore"
	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/coordinator"
	"github.com/riftsync/rift/internal/store/teststore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultCoordinator()
	cfg.DebounceWindow = 20 * time.Millisecond

	st := teststore.New(t)
	blobs, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := coordinator.New(cfg, st, blobs, log)
	return httptest.NewServer(srv.Handler())
}

func TestClientVerifyAuthRegistersNewUser(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	c := New(ts.URL)
	ctx := context.Background()

	user, err := c.VerifyAuth(ctx, "grace", "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, "grace", user.Username)
	assert.NotEmpty(t, user.ID)
}

func TestClientCreateProjectListRiftsAndCreateRift(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	c := New(ts.URL)
	ctx := context.Background()

	user, err := c.VerifyAuth(ctx, "ada", "ada@example.com")
	require.NoError(t, err)

	result, err := c.CreateProject(ctx, "proj", "desc", user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Project.ID)
	assert.Equal(t, "main", result.MainRift.Name)

	rifts, err := c.ListRifts(ctx, result.Project.ID)
	require.NoError(t, err)
	assert.Len(t, rifts, 1)

	fork, err := c.CreateRift(ctx, result.Project.ID, "feature-x", result.MainRift.ID)
	require.NoError(t, err)
	assert.Equal(t, result.MainRift.ID, fork.ParentRiftID)

	require.NoError(t, c.SwitchRift(ctx, fork.ID, user.ID))

	state, err := c.RiftState(ctx, fork.ID)
	require.NoError(t, err)
	assert.Empty(t, state.Files)
}
