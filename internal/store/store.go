// Package store defines the persistence interface the Coordinator uses for
// users, projects, rifts, and checkpoints, grounded in the shape of the
// teacher's internal/storage.Storage interface but narrowed to rift's
// domain. Two implementations satisfy it: store/sqlstore (database/sql over
// MySQL or Dolt, selected at connection time) and store/teststore (an
// in-memory double for tests).
package store

import (
	"context"
	"errors"

	"github.com/riftsync/rift/internal/model"
)

// Sentinel errors. Callers translate these into apierr codes at the
// transport boundary rather than threading apierr through the store.
var (
	ErrNotFound     = errors.New("store: not found")
	ErrNameConflict = errors.New("store: name already in use")
	ErrNotMember    = errors.New("store: not a member of this project")
)

// RiftState is the point-in-time view the Coordinator sends as a
// RiftSnapshot frame when a user joins a rift (spec.md §6).
type RiftState struct {
	LastCheckpointID string            `json:"last_checkpoint_id,omitempty"`
	Files            []model.RiftFile `json:"files"`
}

// CommitRequest describes one checkpoint commit: a batch of file changes
// authored by a single user against a single rift's current tip.
type CommitRequest struct {
	RiftID         string
	AuthorUserID   string
	Message        string
	ParentChecksum string // expected current checkpoint id, for optimistic concurrency
	Changes        []model.FileChange
}

// Store is the persistence boundary the Coordinator depends on. All methods
// take a context so callers can bound request lifetimes (spec.md §6
// request_timeout_s).
type Store interface {
	CreateUser(ctx context.Context, username, email string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	// CreateProject creates a project and its initial "main" rift in one
	// operation (spec.md §4.1: every project starts with a main rift).
	// Returns ErrNameConflict if name is already taken.
	CreateProject(ctx context.Context, name, description, ownerUserID string) (model.Project, model.Rift, error)
	ListProjectsForUser(ctx context.Context, userID string, includeInactive bool) ([]model.Project, error)
	GetProject(ctx context.Context, projectID string) (model.Project, error)
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)

	ListRifts(ctx context.Context, projectID string) ([]model.Rift, error)
	GetRift(ctx context.Context, riftID string) (model.Rift, error)

	// CreateRift adds a rift to an existing project, optionally forked from
	// parentRiftID (spec.md §3 Rift.parent_rift_id). Returns ErrNameConflict
	// if (projectID, name) is already taken.
	CreateRift(ctx context.Context, projectID, name, parentRiftID string) (model.Rift, error)

	// SwitchRift records userID's active rift for a project. Returns
	// ErrNotMember if userID has no access to riftID's project.
	SwitchRift(ctx context.Context, userID, riftID string) error
	GetUserRiftState(ctx context.Context, userID, projectID string) (model.UserRiftState, error)

	// GetRiftState returns the current file table and tip checkpoint for
	// riftID, used to populate a RiftSnapshot frame.
	GetRiftState(ctx context.Context, riftID string) (RiftState, error)

	// GetRiftHistory returns up to limit checkpoints, newest first.
	GetRiftHistory(ctx context.Context, riftID string, limit int) ([]model.Checkpoint, error)

	// GetCheckpointBlobHash walks the checkpoint chain backward from
	// checkpointID looking for the most recent change to path, and returns
	// its content hash (spec.md §4.1 history browsing).
	GetCheckpointBlobHash(ctx context.Context, riftID, checkpointID, path string) (string, error)

	// CommitCheckpoint persists req as a new checkpoint atomically: the
	// checkpoint row, its change list, and the RiftFile table updates all
	// succeed or all fail together. It does not itself serialize concurrent
	// commits to the same rift — the Coordinator's per-rift write lock
	// (spec.md §4.1 step 1) is what prevents interleaving; this method only
	// guarantees the write it's given lands atomically.
	CommitCheckpoint(ctx context.Context, req CommitRequest) (model.Checkpoint, error)

	GetLastCheckpointID(ctx context.Context, riftID string) (string, error)

	Close() error
}
