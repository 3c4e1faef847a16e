package coordinator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/riftsync/rift/internal/apierr"
	"github.com/riftsync/rift/internal/store"
)

// handleAuthVerify is a stand-in for the real OAuth/JWT token-issuance flow
// spec.md §9 explicitly scopes out: it resolves a username to a model.User,
// registering one on first sight, so the rest of the REST surface has an
// identity to key off of without pulling in a full auth provider.
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "missing username"))
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), body.Username)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.store.CreateUser(r.Context(), body.Username, body.Email)
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, user)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrAuthError, "missing user_id"))
		return
	}
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	projects, err := s.store.ListProjectsForUser(r.Context(), userID, includeInactive)
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		OwnerUserID string `json:"owner_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.OwnerUserID == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "missing name or owner_user_id"))
		return
	}

	project, rift, err := s.store.CreateProject(r.Context(), body.Name, body.Description, body.OwnerUserID)
	if errors.Is(err, store.ErrNameConflict) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNameConflict, "project %q already exists", body.Name))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, map[string]any{"project": project, "main_rift": rift})
}

func (s *Server) handleListRifts(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	rifts, err := s.store.ListRifts(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "project %q not found", projectID))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, rifts)
}

func (s *Server) handleCreateRift(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	var body struct {
		Name         string `json:"name"`
		ParentRiftID string `json:"parent_rift_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "missing name"))
		return
	}

	rift, err := s.store.CreateRift(r.Context(), projectID, body.Name, body.ParentRiftID)
	if errors.Is(err, store.ErrNameConflict) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNameConflict, "rift %q already exists in this project", body.Name))
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "project %q not found", projectID))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, rift)
}

func (s *Server) handleSwitchRift(w http.ResponseWriter, r *http.Request) {
	riftID := r.PathValue("riftID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrAuthError, "missing user_id"))
		return
	}

	err := s.store.SwitchRift(r.Context(), userID, riftID)
	if errors.Is(err, store.ErrNotMember) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrPermissionDenied, "user is not a member of this rift's project"))
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "rift %q not found", riftID))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteMessage(w, http.StatusOK, "switched")
}

func (s *Server) handleRiftState(w http.ResponseWriter, r *http.Request) {
	riftID := r.PathValue("riftID")
	state, err := s.store.GetRiftState(r.Context(), riftID)
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "rift %q not found", riftID))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, state)
}

func (s *Server) handleRiftHistory(w http.ResponseWriter, r *http.Request) {
	riftID := r.PathValue("riftID")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	history, err := s.store.GetRiftHistory(r.Context(), riftID, limit)
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "rift %q not found", riftID))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}
	apierr.WriteJSON(w, http.StatusOK, history)
}

func (s *Server) handleCheckpointBlob(w http.ResponseWriter, r *http.Request) {
	checkpointID := r.PathValue("checkpointID")
	path := r.PathValue("path")
	riftID := r.URL.Query().Get("rift_id")
	if riftID == "" {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrProtocolError, "missing rift_id query parameter"))
		return
	}

	hash, err := s.store.GetCheckpointBlobHash(r.Context(), riftID, checkpointID, path)
	if errors.Is(err, store.ErrNotFound) {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrNotFound, "no content for %q at checkpoint %q", path, checkpointID))
		return
	}
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}

	content, err := s.blobs.Get(r.Context(), hash)
	if err != nil {
		apierr.WriteError(w, apierr.Wrap(apierr.ErrStorageError, "%s", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-Hash", hash)
	_, _ = w.Write(content)
}
