package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/apierr"
	"github.com/riftsync/rift/internal/config"
)

func TestIPCHealthAndStatus(t *testing.T) {
	d := New(config.DefaultDaemon(), testLogger())
	ipc := newIPCServer(d, testLogger())
	ts := httptest.NewServer(ipc.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	resp2, err := ts.Client().Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var env apierr.Envelope
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&env))
	assert.True(t, env.Success)
}

func TestIPCBeamAndDisconnect(t *testing.T) {
	coord, st := newTestCoordinator(t)
	defer coord.Close()

	ctx := context.Background()
	owner, err := st.CreateUser(ctx, "ipc-user", "ipc-user@example.com")
	require.NoError(t, err)
	proj, _, err := st.CreateProject(ctx, "ipc-proj", "", owner.ID)
	require.NoError(t, err)

	cfg := config.DefaultDaemon()
	cfg.CoordinatorURL = coord.URL
	d := New(cfg, testLogger())
	ipc := newIPCServer(d, testLogger())
	ts := httptest.NewServer(ipc.Handler())
	defer ts.Close()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o644))

	body, _ := json.Marshal(beamRequest{
		ProjectName: proj.Name,
		RiftName:    "main",
		UserID:      owner.ID,
		LocalRoot:   root,
	})
	resp, err := ts.Client().Post(ts.URL+"/beam", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	require.Eventually(t, func() bool { return len(d.ListTracked()) == 1 }, time.Second, 10*time.Millisecond)

	dbody, _ := json.Marshal(disconnectRequest{ProjectID: proj.ID})
	dresp, err := ts.Client().Post(ts.URL+"/disconnect", "application/json", bytes.NewReader(dbody))
	require.NoError(t, err)
	defer dresp.Body.Close()
	assert.Equal(t, 200, dresp.StatusCode)
	assert.Empty(t, d.ListTracked())
}
