package daemon

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/blobstore"
	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/coordinator"
	"github.com/riftsync/rift/internal/store/teststore"
)

// newTestCoordinator spins up a real Coordinator (teststore-backed, no
// toolchain-unfriendly DB dependency) behind httptest, mirroring
// internal/coordinator's own test helper.
func newTestCoordinator(t *testing.T) (*httptest.Server, *teststore.Store) {
	t.Helper()
	cfg := config.DefaultCoordinator()
	cfg.DebounceWindow = 20 * time.Millisecond

	st := teststore.New(t)
	blobs, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)
	srv := coordinator.New(cfg, st, blobs, testLogger())
	return httptest.NewServer(srv.Handler()), st
}

func TestDaemonBeamConnectsWatchesAndRelays(t *testing.T) {
	ts, st := newTestCoordinator(t)
	defer ts.Close()

	ctx := context.Background()

	owner, err := st.CreateUser(ctx, "ada", "ada@example.com")
	require.NoError(t, err)
	proj, mainRift, err := st.CreateProject(ctx, "proj", "", owner.ID)
	require.NoError(t, err)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	cfg := config.DefaultDaemon()
	cfg.CoordinatorURL = ts.URL
	cfg.DebounceWindow = 20 * time.Millisecond
	cfg.SuppressionWindow = 50 * time.Millisecond

	d := New(cfg, testLogger())
	tp, err := d.Beam(ctx, proj.Name, mainRift.Name, owner.ID, root)
	require.NoError(t, err)
	assert.Equal(t, proj.ID, tp.ProjectID)
	assert.Equal(t, mainRift.ID, tp.RiftID)

	require.Eventually(t, func() bool { return tp.client.connected() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi there"), 0o644))

	require.Eventually(t, func() bool {
		state, err := st.GetRiftState(ctx, mainRift.ID)
		if err != nil || len(state.Files) == 0 {
			return false
		}
		for _, f := range state.Files {
			if f.Path == "hello.txt" {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond, "coordinator should observe the relayed file change")

	statuses := d.ListTracked()
	require.Len(t, statuses, 1)
	assert.Equal(t, proj.ID, statuses[0].ProjectID)

	require.NoError(t, d.Disconnect(proj.ID))
	assert.Empty(t, d.ListTracked())
}

func TestDaemonDisconnectUnknownProjectErrors(t *testing.T) {
	d := New(config.DefaultDaemon(), testLogger())
	err := d.Disconnect("does-not-exist")
	assert.Error(t, err)
}
