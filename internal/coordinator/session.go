package coordinator

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/riftsync/rift/internal/apierr"
	"github.com/riftsync/rift/internal/broadcast"
	"github.com/riftsync/rift/internal/protocol"
)

// session is one live WebSocket connection: one user, at most one joined
// rift at a time (spec.md §4.1 "a session subscribes to exactly one rift").
type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	server *Server

	writeMu sync.Mutex

	mu   sync.Mutex
	rift string
	sub  *broadcast.Subscriber
	stop func()
}

// heartbeatInterval is how often the writer sends a Heartbeat frame to keep
// intermediary proxies from idling out the connection (spec.md §6).
const heartbeatInterval = 30 * time.Second

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrAuthError, "missing user_id"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := &session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		server: s,
	}
	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	s.log.Info("session connected", "session_id", sess.id, "user_id", userID)

	go sess.writePump()
	sess.readPump()
}

func (s *session) writeFrame(f protocol.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		sub := s.sub
		s.mu.Unlock()

		if sub == nil {
			<-ticker.C
			if err := s.writeFrame(protocol.Heartbeat()); err != nil {
				return
			}
			continue
		}

		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := s.writeFrame(frame); err != nil {
				return
			}
		case <-sub.Lagged():
			// Lagged is closed once and stays closed, so without leaving the
			// rift here this case would fire on every remaining loop
			// iteration once the backlog drains — a busy spin re-emitting
			// Lagged forever instead of the single notification scenario 3
			// and P8 describe. leaveRift tears the subscriber down (sets
			// s.sub back to nil, so the next iteration falls into the
			// heartbeat-only branch) until the client re-JoinRifts.
			if err := s.writeFrame(protocol.Frame{Type: protocol.TypeLagged, Lagged: &protocol.Lagged{RiftID: s.currentRift()}}); err != nil {
				return
			}
			s.leaveRift()
		case <-ticker.C:
			if err := s.writeFrame(protocol.Heartbeat()); err != nil {
				return
			}
		}
	}
}

func (s *session) currentRift() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rift
}

// subscriberFor returns this session's Subscriber if it's currently joined
// to riftID, or nil otherwise (it may have left or switched rifts since the
// caller's reference to this session was taken).
func (s *session) subscriberFor(riftID string) *broadcast.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rift != riftID {
		return nil
	}
	return s.sub
}

func (s *session) readPump() {
	defer s.cleanup()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			_ = s.writeFrame(protocol.Frame{
				Type:  protocol.TypeError,
				Error: &protocol.ErrorFrame{Code: string(apierr.CodeProtocolError), Message: err.Error()},
			})
			continue
		}

		s.handleFrame(frame)
	}
}

func (s *session) handleFrame(frame protocol.Frame) {
	switch frame.Type {
	case protocol.TypeJoinRift:
		if frame.JoinRift != nil {
			s.joinRift(frame.JoinRift.RiftID)
		}
	case protocol.TypeLeaveRift:
		if frame.LeaveRift != nil {
			s.leaveRift()
		}
	case protocol.TypeFileChanged:
		if frame.FileChanged != nil {
			s.fileChanged(*frame.FileChanged)
		}
	case protocol.TypeHeartbeat:
		// No-op; presence of traffic is enough.
	default:
		_ = s.writeFrame(protocol.Frame{
			Type:  protocol.TypeError,
			Error: &protocol.ErrorFrame{Code: string(apierr.CodeProtocolError), Message: "unexpected frame type from client: " + string(frame.Type)},
		})
	}
}

func (s *session) joinRift(riftID string) {
	ctx := s.server.ctx()
	member, err := s.server.isMember(ctx, riftID, s.userID)
	if err != nil || !member {
		_ = s.writeFrame(protocol.Frame{
			Type:  protocol.TypeError,
			Error: &protocol.ErrorFrame{Code: string(apierr.CodePermissionDenied), Message: "not a member of this rift's project"},
		})
		return
	}

	s.leaveRift()

	hub := s.server.hubs.HubFor(riftID)
	sub, unsub := hub.Subscribe()

	s.mu.Lock()
	s.rift = riftID
	s.sub = sub
	s.stop = unsub
	s.mu.Unlock()

	// Hold the same per-rift lock flushSession commits under, so the
	// snapshot read can't land mid-commit (spec.md §4.1/P2: join is a
	// single snapshot-plus-subscription critical section). Subscribe
	// already happened above, so at worst a commit's FileUpdate is both
	// reflected in this snapshot and redelivered over the fresh
	// subscription — redundant but idempotent, never a lost update.
	lock := s.server.locks.lockFor(riftID)
	lock.Lock()
	snapshot, err := s.server.store.GetRiftState(ctx, riftID)
	lock.Unlock()
	if err != nil {
		_ = s.writeFrame(protocol.Frame{
			Type:  protocol.TypeError,
			Error: &protocol.ErrorFrame{Code: string(apierr.CodeStorageError), Message: err.Error()},
		})
		return
	}

	files := make([]protocol.SnapshotFile, 0, len(snapshot.Files))
	for _, f := range snapshot.Files {
		sf := protocol.SnapshotFile{Path: f.Path, Hash: f.ContentHash}
		if content, err := s.server.blobs.Get(ctx, f.ContentHash); err == nil && len(content) <= snapshotInlineThresholdBytes {
			sf.Content = string(content)
		}
		files = append(files, sf)
	}

	_ = s.writeFrame(protocol.Frame{
		Type: protocol.TypeRiftSnapshot,
		RiftSnapshot: &protocol.RiftSnapshot{
			RiftID:           riftID,
			LastCheckpointID: snapshot.LastCheckpointID,
			Files:            files,
		},
	})

	hub.Publish(protocol.Frame{
		Type:     protocol.TypeUserJoined,
		UserJoined: &protocol.UserPresence{RiftID: riftID, UserID: s.userID},
	})
}

// snapshotInlineThresholdBytes bounds how large a file's content can be
// before a RiftSnapshot omits it and lets the daemon fetch it on demand via
// GET /checkpoints/{id}/blob/{path} (spec.md §9 Open Questions).
const snapshotInlineThresholdBytes = 256 * 1024

func (s *session) leaveRift() {
	s.mu.Lock()
	riftID, stop := s.rift, s.stop
	s.rift, s.sub, s.stop = "", nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	if riftID != "" {
		s.server.hubs.HubFor(riftID).Publish(protocol.Frame{
			Type:     protocol.TypeUserLeft,
			UserLeft: &protocol.UserPresence{RiftID: riftID, UserID: s.userID},
		})
	}
}

func (s *session) fileChanged(fc protocol.FileChanged) {
	s.mu.Lock()
	joined := s.rift == fc.RiftID && s.rift != ""
	s.mu.Unlock()
	if !joined {
		_ = s.writeFrame(protocol.Frame{
			Type:  protocol.TypeError,
			Error: &protocol.ErrorFrame{Code: string(apierr.CodeProtocolError), Message: "file change for a rift this session hasn't joined"},
		})
		return
	}

	s.server.pending.Append(s.id, fc.RiftID, s.userID, fc.Path, pendingEdit{Content: fc.Content, Deleted: fc.Deleted})
	s.server.batches.Trigger(s.id)
}

func (s *session) cleanup() {
	s.leaveRift()
	_ = s.conn.Close()

	s.server.sessionsMu.Lock()
	delete(s.server.sessions, s.id)
	s.server.sessionsMu.Unlock()

	s.server.log.Info("session disconnected", "session_id", s.id, "user_id", s.userID)
}

func (s *Server) isMember(ctx context.Context, riftID, userID string) (bool, error) {
	rift, err := s.store.GetRift(ctx, riftID)
	if err != nil {
		return false, err
	}
	return s.store.IsProjectMember(ctx, rift.ProjectID, userID)
}

// ctx returns a background context; request-scoped deadlines are applied at
// the HTTP handler layer, but a WebSocket session outlives any one request.
func (s *Server) ctx() context.Context { return context.Background() }
