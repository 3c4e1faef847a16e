// Package teststore provides an in-memory store.Store for unit tests,
// styled after the teacher's internal/testutil/teststore helper package but
// deliberately backend-free: the teacher's New(t) shells out to the dolt
// binary and skips the test if it isn't on PATH, which is unsuitable here
// because these tests must run hermetically. teststore instead keeps every
// row in Go maps guarded by a mutex, trading persistence for determinism.
package teststore

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/riftsync/rift/internal/model"
	"github.com/riftsync/rift/internal/store"
)

// Store is an in-memory store.Store. Zero value is not usable; use New.
type Store struct {
	mu sync.Mutex

	users        map[string]model.User // by id
	usersByName  map[string]string     // username -> id
	projects     map[string]model.Project
	members      map[string]map[string]bool // projectID -> userID -> true
	rifts        map[string]model.Rift
	riftsByProj  map[string][]string
	riftFiles    map[string]map[string]model.RiftFile // riftID -> path -> file
	checkpoints  map[string]model.Checkpoint
	riftTips     map[string][]string // riftID -> checkpoint ids, oldest first
	userRiftMap  map[string]model.UserRiftState // userID|projectID -> state
}

// New returns a ready-to-use Store. Pass t so future extensions can register
// cleanup; the current implementation needs none.
func New(t testing.TB) *Store {
	t.Helper()
	return &Store{
		users:       make(map[string]model.User),
		usersByName: make(map[string]string),
		projects:    make(map[string]model.Project),
		members:     make(map[string]map[string]bool),
		rifts:       make(map[string]model.Rift),
		riftsByProj: make(map[string][]string),
		riftFiles:   make(map[string]map[string]model.RiftFile),
		checkpoints: make(map[string]model.Checkpoint),
		riftTips:    make(map[string][]string),
		userRiftMap: make(map[string]model.UserRiftState),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(_ context.Context, username, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByName[username]; ok {
		return model.User{}, store.ErrNameConflict
	}
	u := model.User{ID: uuid.NewString(), Username: username, Email: email, Role: model.RoleUser}
	s.users[u.ID] = u
	s.usersByName[username] = u.ID
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByName[username]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) CreateProject(_ context.Context, name, description, ownerUserID string) (model.Project, model.Rift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.projects {
		if p.Name == name {
			return model.Project{}, model.Rift{}, store.ErrNameConflict
		}
	}

	proj := model.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Description: description,
		CreatedAt: time.Now().UTC(),
		Members:   []string{ownerUserID},
	}
	s.projects[proj.ID] = proj
	s.members[proj.ID] = map[string]bool{ownerUserID: true}

	main := model.Rift{
		ID:        uuid.NewString(),
		ProjectID: proj.ID,
		Name:      "main",
		CreatedAt: proj.CreatedAt,
		IsActive:  true,
	}
	s.rifts[main.ID] = main
	s.riftsByProj[proj.ID] = append(s.riftsByProj[proj.ID], main.ID)
	s.riftFiles[main.ID] = make(map[string]model.RiftFile)

	return proj, main, nil
}

func (s *Store) ListProjectsForUser(_ context.Context, userID string, includeInactive bool) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Project
	for _, p := range s.projects {
		if !s.members[p.ID][userID] {
			continue
		}
		if !includeInactive && !s.anyActiveRift(p.ID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) anyActiveRift(projectID string) bool {
	for _, rid := range s.riftsByProj[projectID] {
		if s.rifts[rid].IsActive {
			return true
		}
	}
	return false
}

func (s *Store) GetProject(_ context.Context, projectID string) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return model.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) IsProjectMember(_ context.Context, projectID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return false, store.ErrNotFound
	}
	return s.members[projectID][userID], nil
}

func (s *Store) ListRifts(_ context.Context, projectID string) ([]model.Rift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, store.ErrNotFound
	}
	var out []model.Rift
	for _, rid := range s.riftsByProj[projectID] {
		out = append(out, s.rifts[rid])
	}
	return out, nil
}

func (s *Store) CreateRift(_ context.Context, projectID, name, parentRiftID string) (model.Rift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return model.Rift{}, store.ErrNotFound
	}
	for _, rid := range s.riftsByProj[projectID] {
		if s.rifts[rid].Name == name {
			return model.Rift{}, store.ErrNameConflict
		}
	}

	r := model.Rift{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Name:         name,
		ParentRiftID: parentRiftID,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	s.rifts[r.ID] = r
	s.riftsByProj[projectID] = append(s.riftsByProj[projectID], r.ID)
	s.riftFiles[r.ID] = make(map[string]model.RiftFile)
	return r, nil
}

func (s *Store) GetRift(_ context.Context, riftID string) (model.Rift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rifts[riftID]
	if !ok {
		return model.Rift{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) SwitchRift(_ context.Context, userID, riftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rifts[riftID]
	if !ok {
		return store.ErrNotFound
	}
	if !s.members[r.ProjectID][userID] {
		return store.ErrNotMember
	}
	key := userID + "|" + r.ProjectID
	s.userRiftMap[key] = model.UserRiftState{UserID: userID, ProjectID: r.ProjectID, CurrentRiftID: riftID}
	return nil
}

func (s *Store) GetUserRiftState(_ context.Context, userID, projectID string) (model.UserRiftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "|" + projectID
	st, ok := s.userRiftMap[key]
	if !ok {
		return model.UserRiftState{}, store.ErrNotFound
	}
	return st, nil
}

func (s *Store) GetRiftState(_ context.Context, riftID string) (store.RiftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.riftFiles[riftID]
	if !ok {
		return store.RiftState{}, store.ErrNotFound
	}

	out := store.RiftState{}
	tips := s.riftTips[riftID]
	if len(tips) > 0 {
		out.LastCheckpointID = tips[len(tips)-1]
	}
	for _, f := range files {
		out.Files = append(out.Files, f)
	}
	return out, nil
}

func (s *Store) GetRiftHistory(_ context.Context, riftID string, limit int) ([]model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tips := s.riftTips[riftID]
	var out []model.Checkpoint
	for i := len(tips) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.checkpoints[tips[i]])
	}
	return out, nil
}

func (s *Store) GetCheckpointBlobHash(_ context.Context, riftID, checkpointID, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := checkpointID
	for id != "" {
		cp, ok := s.checkpoints[id]
		if !ok {
			break
		}
		for _, ch := range cp.Changes {
			if ch.Path == path {
				if ch.ChangeType == model.ChangeDeleted {
					return "", store.ErrNotFound
				}
				return ch.NewContentHash, nil
			}
		}
		id = cp.ParentCheckpointID
	}
	_ = riftID
	return "", store.ErrNotFound
}

func (s *Store) CommitCheckpoint(_ context.Context, req store.CommitRequest) (model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.riftFiles[req.RiftID]
	if !ok {
		return model.Checkpoint{}, store.ErrNotFound
	}

	parent := ""
	if tips := s.riftTips[req.RiftID]; len(tips) > 0 {
		parent = tips[len(tips)-1]
	}

	cp := model.Checkpoint{
		ID:                 uuid.NewString(),
		RiftID:             req.RiftID,
		AuthorUserID:       req.AuthorUserID,
		Timestamp:          time.Now().UTC(),
		ParentCheckpointID: parent,
		Message:            req.Message,
		Changes:            req.Changes,
	}

	for _, ch := range req.Changes {
		switch ch.ChangeType {
		case model.ChangeDeleted:
			delete(files, ch.Path)
		case model.ChangeMoved:
			delete(files, ch.MovedFrom)
			files[ch.Path] = model.RiftFile{RiftID: req.RiftID, Path: ch.Path, ContentHash: ch.NewContentHash}
		default:
			files[ch.Path] = model.RiftFile{RiftID: req.RiftID, Path: ch.Path, ContentHash: ch.NewContentHash}
		}
	}

	s.checkpoints[cp.ID] = cp
	s.riftTips[req.RiftID] = append(s.riftTips[req.RiftID], cp.ID)
	return cp, nil
}

func (s *Store) GetLastCheckpointID(_ context.Context, riftID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tips := s.riftTips[riftID]
	if len(tips) == 0 {
		return "", nil
	}
	return tips[len(tips)-1], nil
}

func (s *Store) Close() error { return nil }
