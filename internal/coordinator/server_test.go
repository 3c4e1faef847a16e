package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/blobstore"
	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/protocol"
	"github.com/riftsync/rift/internal/store/teststore"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultCoordinator()
	cfg.DebounceWindow = 20 * time.Millisecond
	cfg.BroadcastQueueCapacity = 4

	blobs, err := blobstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	st := teststore.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := New(cfg, st, blobs, log)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, hs
}

func TestHealthEndpoint(t *testing.T) {
	_, hs := newTestServer(t)

	resp, err := http.Get(hs.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateProjectAndListRifts(t *testing.T) {
	srv, hs := newTestServer(t)

	user, err := srv.store.CreateUser(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)

	body := strings.NewReader(`{"name":"acme","description":"demo","owner_user_id":"` + user.ID + `"}`)
	resp, err := http.Post(hs.URL+"/projects", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Project struct {
				ID string `json:"id"`
			} `json:"project"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.True(t, env.Success)
	require.NotEmpty(t, env.Data.Project.ID)

	rresp, err := http.Get(hs.URL + "/projects/" + env.Data.Project.ID + "/rifts")
	require.NoError(t, err)
	defer rresp.Body.Close()
	require.Equal(t, http.StatusOK, rresp.StatusCode)
}

func TestWebSocketJoinRiftAndFileChangedCommits(t *testing.T) {
	srv, hs := newTestServer(t)
	ctx := context.Background()

	user, err := srv.store.CreateUser(ctx, "bob", "bob@example.com")
	require.NoError(t, err)
	_, rift, err := srv.store.CreateProject(ctx, "widgets", "", user.ID)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws?user_id=" + user.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(protocol.Frame{
		Type:     protocol.TypeJoinRift,
		JoinRift: &protocol.JoinRift{RiftID: rift.ID},
	}))

	var snapshot protocol.Frame
	require.NoError(t, conn.ReadJSON(&snapshot))
	require.Equal(t, protocol.TypeRiftSnapshot, snapshot.Type)

	// A second session joined to the same rift stands in for another peer:
	// it should see the FileUpdate the author's commit produces.
	wsURL2 := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws?user_id=" + user.ID
	peerConn, _, err := websocket.DefaultDialer.Dial(wsURL2, nil)
	require.NoError(t, err)
	defer peerConn.Close()
	require.NoError(t, peerConn.WriteJSON(protocol.Frame{
		Type:     protocol.TypeJoinRift,
		JoinRift: &protocol.JoinRift{RiftID: rift.ID},
	}))
	var peerSnapshot protocol.Frame
	require.NoError(t, peerConn.ReadJSON(&peerSnapshot))
	require.Equal(t, protocol.TypeRiftSnapshot, peerSnapshot.Type)

	// The peer's join broadcasts UserJoined to the author too; drain it so
	// the author's next frame below is unambiguously the commit's own
	// CheckpointCreated.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var presence protocol.Frame
	require.NoError(t, conn.ReadJSON(&presence))
	require.Equal(t, protocol.TypeUserJoined, presence.Type)

	require.NoError(t, conn.WriteJSON(protocol.Frame{
		Type: protocol.TypeFileChanged,
		FileChanged: &protocol.FileChanged{
			RiftID:  rift.ID,
			Path:    "a.txt",
			Content: "hello",
		},
	}))

	// Spec.md §4.1 step 6 / P3: the committing author receives
	// CheckpointCreated only, never the FileUpdate fanned out to the rift's
	// other subscribers. The author's very next frame after FileChanged
	// must be CheckpointCreated, not a FileUpdate echo.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var authorFrame protocol.Frame
	require.NoError(t, conn.ReadJSON(&authorFrame))
	require.Equal(t, protocol.TypeCheckpointCreated, authorFrame.Type)
	require.Len(t, authorFrame.CheckpointCreated.Checkpoint.Changes, 1)
	require.Equal(t, "a.txt", authorFrame.CheckpointCreated.Checkpoint.Changes[0].Path)

	// The peer, which never emitted the change, receives the FileUpdate.
	_ = peerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var peerFrame protocol.Frame
	for {
		require.NoError(t, peerConn.ReadJSON(&peerFrame))
		if peerFrame.Type == protocol.TypeUserJoined {
			continue // the peer's own join presence notification
		}
		break
	}
	require.Equal(t, protocol.TypeFileUpdate, peerFrame.Type)
	require.Equal(t, "a.txt", peerFrame.FileUpdate.Path)
}
