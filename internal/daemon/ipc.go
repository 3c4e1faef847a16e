package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/riftsync/rift/internal/apierr"
)

// ipcServer is the Daemon's loopback HTTP API the Client talks to
// (spec.md §4.3): health, status, beam, disconnect, shutdown. Route
// registration mirrors internal/coordinator.Server's ServeMux/Handler/
// Start/Shutdown shape, scaled down to a handful of local routes.
type ipcServer struct {
	d   *Daemon
	log *slog.Logger

	mux        *http.ServeMux
	httpServer *http.Server
}

func newIPCServer(d *Daemon, log *slog.Logger) *ipcServer {
	if log == nil {
		log = slog.Default()
	}
	s := &ipcServer{d: d, log: log, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *ipcServer) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /projects", s.handleStatus)
	s.mux.HandleFunc("POST /beam", s.handleBeam)
	s.mux.HandleFunc("POST /disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /shutdown", s.handleShutdown)
}

// Handler returns the HTTP handler, for use with httptest.
func (s *ipcServer) Handler() http.Handler { return s.mux }

func (s *ipcServer) listenAndServe(port int) error {
	s.httpServer = &http.Server{
		Addr:         "127.0.0.1:" + strconv.Itoa(port),
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Info("daemon ipc listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *ipcServer) shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *ipcServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ipcServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("previous") == "true" {
		entries, err := s.d.PreviouslyTracked()
		if err != nil {
			apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "read tracked-project history: %v", err))
			return
		}
		apierr.WriteJSON(w, http.StatusOK, entries)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, s.d.ListTracked())
}

// beamRequest names the project (and optionally the rift) to beam, mirroring
// spec.md §4.2's "POST /beam {project_name}" — the Daemon resolves these
// against the Coordinator itself, so the Client never has to know raw
// project/rift UUIDs (spec.md §2 data-flow step 2).
type beamRequest struct {
	ProjectName string `json:"project_name"`
	RiftName    string `json:"rift_name"`
	UserID      string `json:"user_id"`
	LocalRoot   string `json:"local_root"`
}

func (s *ipcServer) handleBeam(w http.ResponseWriter, r *http.Request) {
	var req beamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "decode beam request: %v", err))
		return
	}
	if req.ProjectName == "" || req.UserID == "" || req.LocalRoot == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "project_name, user_id and local_root are required"))
		return
	}

	tp, err := s.d.Beam(r.Context(), req.ProjectName, req.RiftName, req.UserID, req.LocalRoot)
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "beam: %v", err))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, statusOf(tp))
}

type disconnectRequest struct {
	ProjectID string `json:"project_id"`
}

func (s *ipcServer) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "decode disconnect request: %v", err))
		return
	}
	if err := s.d.Disconnect(req.ProjectID); err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "%v", err))
		return
	}
	apierr.WriteMessage(w, http.StatusOK, "disconnected")
}

// handleShutdown stops every tracked project then, asynchronously, the IPC
// server itself (after this handler's response is flushed, since shutting
// the server down from inside its own handler would hang the response).
func (s *ipcServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	apierr.WriteMessage(w, http.StatusOK, "shutting down")
	go func() {
		s.d.shutdownAll()
		_ = s.shutdown(context.Background())
	}()
}
