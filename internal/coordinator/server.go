// Package coordinator implements the authoritative server of spec.md §4.1:
// HTTP REST endpoints plus a WebSocket fan-out per rift, backed by a
// store.Store and a blobstore.Store. Route registration and the JSON
// envelope responses are grounded in the teacher's internal/webhook.Server
// (NewServer building an *http.ServeMux, Start/Shutdown pair); the
// WebSocket upgrade and per-rift broadcast are grounded in
// internal/coop.Watcher and internal/rpc.Server's watcher registry,
// generalized from one global stream to one Hub per rift.
package coordinator

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/riftsync/rift/internal/apierr"
	"github.com/riftsync/rift/internal/blobstore"
	"github.com/riftsync/rift/internal/broadcast"
	"github.com/riftsync/rift/internal/checkpoint"
	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/model"
	"github.com/riftsync/rift/internal/protocol"
	"github.com/riftsync/rift/internal/store"
)

// Server is the Coordinator's HTTP+WebSocket front end.
type Server struct {
	cfg      config.Coordinator
	store    store.Store
	blobs    blobstore.Store
	hubs     *broadcast.Registry
	locks    *riftLocks
	log      *slog.Logger
	upgrader websocket.Upgrader

	mux        *http.ServeMux
	httpServer *http.Server

	batches *checkpoint.KeyedDebouncer[string] // keyed by session id
	pending *pendingStore

	sessionsMu sync.RWMutex
	sessions   map[string]*session
}

// New builds a Server ready to Start.
func New(cfg config.Coordinator, st store.Store, blobs blobstore.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:   cfg,
		store: st,
		blobs: blobs,
		hubs:  broadcast.NewRegistry(cfg.BroadcastQueueCapacity),
		locks: newRiftLocks(),
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		pending:  newPendingStore(),
		sessions: make(map[string]*session),
	}
	s.batches = checkpoint.NewKeyedDebouncer(cfg.DebounceWindow, s.flushSession)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /auth/verify", s.handleAuthVerify)
	s.mux.HandleFunc("GET /projects", s.handleListProjects)
	s.mux.HandleFunc("POST /projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /projects/{projectID}/rifts", s.handleListRifts)
	s.mux.HandleFunc("POST /projects/{projectID}/rifts", s.handleCreateRift)
	s.mux.HandleFunc("POST /rifts/{riftID}/switch", s.handleSwitchRift)
	s.mux.HandleFunc("GET /rifts/{riftID}/state", s.handleRiftState)
	s.mux.HandleFunc("GET /rifts/{riftID}/history", s.handleRiftHistory)
	s.mux.HandleFunc("GET /checkpoints/{checkpointID}/blob/{path...}", s.handleCheckpointBlob)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the HTTP handler, for use with httptest or a custom
// *http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves on cfg.BindAddress:cfg.Port until Shutdown is
// called.
func (s *Server) Start() error {
	addr := s.cfg.BindAddress
	s.httpServer = &http.Server{
		Addr:         addr + portSuffix(s.cfg.Port),
		Handler:      s.mux,
		ReadTimeout:  s.cfg.RequestTimeout,
		WriteTimeout: s.cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info("coordinator listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and drains pending batches.
func (s *Server) Shutdown(ctx context.Context) error {
	s.batches.CancelAndWaitAll()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// putBlobWithRetry writes data to the blob store, retrying up to 3 times
// with exponential backoff before giving up (spec.md §4.1 failure model:
// "Blob store write failure → retry transparently up to 3 times with
// exponential backoff; then fail the commit").
func (s *Server) putBlobWithRetry(ctx context.Context, data []byte) (string, error) {
	var hash string
	op := func() error {
		h, err := s.blobs.Put(ctx, data)
		if err != nil {
			return err
		}
		hash = h
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return hash, nil
}

func portSuffix(port int) string {
	if port == 0 {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// flushSession is the KeyedDebouncer action for sessionID: it takes the
// accumulated pendingBatch, commits it as one checkpoint under the rift's
// write lock (spec.md §4.1 step 1), then fans FileUpdate frames out to the
// rift's Hub and delivers CheckpointCreated to the author's session alone
// (protocol.CheckpointCreated doc: "emitted to the committing author only").
func (s *Server) flushSession(sessionID string) {
	batch := s.pending.Take(sessionID)
	if batch == nil || len(batch.Edits) == 0 {
		return
	}

	ctx := s.ctx()
	lock := s.locks.lockFor(batch.RiftID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.store.GetRiftState(ctx, batch.RiftID)
	if err != nil {
		s.log.Warn("flushSession: GetRiftState failed", "rift_id", batch.RiftID, "error", err)
		return
	}
	existing := make(map[string]string, len(state.Files))
	for _, f := range state.Files {
		existing[f.Path] = f.ContentHash
	}

	type applied struct {
		path    string
		content []byte
		deleted bool
	}
	changes := make([]model.FileChange, 0, len(batch.Edits))
	appliedFiles := make([]applied, 0, len(batch.Edits))
	for path, edit := range batch.Edits {
		if edit.Deleted {
			if _, ok := existing[path]; !ok {
				continue // deleting a path the rift never had; nothing to commit
			}
			changes = append(changes, model.FileChange{Path: path, ChangeType: model.ChangeDeleted})
			appliedFiles = append(appliedFiles, applied{path: path, deleted: true})
			continue
		}

		data := []byte(edit.Content)
		hash, err := s.putBlobWithRetry(ctx, data)
		if err != nil {
			s.log.Warn("flushSession: blob put failed", "path", path, "error", err)
			return
		}
		changeType := model.ChangeModified
		if _, ok := existing[path]; !ok {
			changeType = model.ChangeCreated
		}
		changes = append(changes, model.FileChange{
			Path:           path,
			ChangeType:     changeType,
			NewContentHash: hash,
		})
		appliedFiles = append(appliedFiles, applied{path: path, content: data})
	}
	if len(changes) == 0 {
		return
	}

	cp, err := s.store.CommitCheckpoint(ctx, store.CommitRequest{
		RiftID:         batch.RiftID,
		AuthorUserID:   batch.AuthorUserID,
		ParentChecksum: state.LastCheckpointID,
		Changes:        changes,
	})
	if err != nil {
		s.log.Warn("flushSession: CommitCheckpoint failed", "rift_id", batch.RiftID, "error", err)
		return
	}

	s.sessionsMu.RLock()
	author := s.sessions[sessionID]
	s.sessionsMu.RUnlock()

	// Exclude the committing author's own subscriber from the FileUpdate
	// fan-out: a session that emits FileChanged never receives the
	// corresponding FileUpdate, only CheckpointCreated below (spec.md §4.1
	// step 6, P3; protocol.CheckpointCreated's doc comment).
	var authorSubID int64
	if author != nil {
		if sub := author.subscriberFor(batch.RiftID); sub != nil {
			authorSubID = sub.ID()
		}
	}

	hub := s.hubs.HubFor(batch.RiftID)
	now := time.Now().UTC()
	for _, f := range appliedFiles {
		hub.PublishExcept(protocol.Frame{
			Type: protocol.TypeFileUpdate,
			FileUpdate: &protocol.FileUpdate{
				RiftID:       batch.RiftID,
				Path:         f.path,
				Content:      string(f.content),
				Deleted:      f.deleted,
				Author:       batch.AuthorUserID,
				ServerTS:     now,
				CheckpointID: cp.ID,
			},
		}, authorSubID)
	}

	if author == nil {
		return
	}

	wireChanges := make([]protocol.FileChangeWire, 0, len(cp.Changes))
	for _, c := range cp.Changes {
		wireChanges = append(wireChanges, protocol.FileChangeWire{
			Path:       c.Path,
			ChangeType: string(c.ChangeType),
			Hash:       c.NewContentHash,
			MovedFrom:  c.MovedFrom,
		})
	}
	_ = author.writeFrame(protocol.Frame{
		Type: protocol.TypeCheckpointCreated,
		CheckpointCreated: &protocol.CheckpointCreated{
			RiftID: batch.RiftID,
			Checkpoint: protocol.CheckpointWire{
				ID:                 cp.ID,
				RiftID:             cp.RiftID,
				Author:             cp.AuthorUserID,
				Timestamp:          cp.Timestamp,
				ParentCheckpointID: cp.ParentCheckpointID,
				Message:            cp.Message,
				Changes:            wireChanges,
			},
		},
	})
}
