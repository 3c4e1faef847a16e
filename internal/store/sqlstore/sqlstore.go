// Package sqlstore implements store.Store on top of database/sql, sharing
// one set of queries across two drivers: github.com/go-sql-driver/mysql and
// github.com/dolthub/driver (Dolt speaks the MySQL wire protocol, so the
// same SQL and the same *sql.DB-based code serve both — spec.md §9 treats
// "Persistent SQL schema implementation details" as out of scope, which
// this package takes to mean no migration framework, just idempotent
// CREATE TABLE IF NOT EXISTS DDL run at startup, grounded in the teacher's
// internal/storage/sqlite.schema and internal/storage/dolt.applyMigrations
// pattern).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/riftsync/rift/internal/model"
	"github.com/riftsync/rift/internal/store"
)

// Backend selects which database/sql driver name to use. Both speak the
// MySQL wire dialect, so the schema and queries below are shared verbatim.
type Backend string

const (
	BackendMySQL Backend = "mysql"
	BackendDolt  Backend = "dolt"
)

func (b Backend) driverName() (string, error) {
	switch b {
	case BackendMySQL:
		return "mysql", nil
	case BackendDolt:
		return "dolt", nil
	default:
		return "", fmt.Errorf("sqlstore: unknown backend %q", b)
	}
}

// Store is a store.Store backed by a *sql.DB.
type Store struct {
	db *sql.DB
}

// Open connects to dsn using backend's driver, runs schema bootstrap, and
// returns a ready Store. Callers must call Close when done.
func Open(ctx context.Context, backend Backend, dsn string) (*Store, error) {
	driverName, err := backend.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", driverName, err)
	}

	s := &Store{db: db}
	if err := s.bootstrapSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrapSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: schema bootstrap: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateUser(ctx context.Context, username, email string) (model.User, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role) VALUES (?, ?, ?, ?)`,
		id, username, email, model.RoleUser)
	if isDuplicateErr(err) {
		return model.User{}, store.ErrNameConflict
	}
	if err != nil {
		return model.User{}, fmt.Errorf("sqlstore: create user: %w", err)
	}
	return model.User{ID: id, Username: username, Email: email, Role: model.RoleUser}, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role)
	if err == sql.ErrNoRows {
		return model.User{}, store.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("sqlstore: get user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateProject(ctx context.Context, name, description, ownerUserID string) (model.Project, model.Rift, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: begin create project: %w", err)
	}
	defer tx.Rollback()

	projID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, description) VALUES (?, ?, ?)`,
		projID, name, description)
	if isDuplicateErr(err) {
		return model.Project{}, model.Rift{}, store.ErrNameConflict
	}
	if err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: create project: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id) VALUES (?, ?)`,
		projID, ownerUserID); err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: add owner member: %w", err)
	}

	riftID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rifts (id, project_id, name, is_active) VALUES (?, ?, 'main', TRUE)`,
		riftID, projID); err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: create main rift: %w", err)
	}

	var proj model.Project
	if err := tx.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = ?`, projID,
	).Scan(&proj.ID, &proj.Name, &proj.Description, &proj.CreatedAt); err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: reload project: %w", err)
	}
	proj.Members = []string{ownerUserID}

	var rift model.Rift
	if err := tx.QueryRowContext(ctx,
		`SELECT id, project_id, name, created_at, is_active FROM rifts WHERE id = ?`, riftID,
	).Scan(&rift.ID, &rift.ProjectID, &rift.Name, &rift.CreatedAt, &rift.IsActive); err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: reload main rift: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Project{}, model.Rift{}, fmt.Errorf("sqlstore: commit create project: %w", err)
	}
	return proj, rift, nil
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string, includeInactive bool) ([]model.Project, error) {
	query := `
		SELECT DISTINCT p.id, p.name, p.description, p.created_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id`
	args := []any{userID}
	query += ` WHERE m.user_id = ?`
	if !includeInactive {
		query += ` AND EXISTS (SELECT 1 FROM rifts r WHERE r.project_id = p.id AND r.is_active = TRUE)`
	}
	query += ` ORDER BY p.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = ?`, projectID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Project{}, store.ErrNotFound
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("sqlstore: get project: %w", err)
	}
	return p, nil
}

func (s *Store) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?)`,
		projectID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlstore: check membership: %w", err)
	}
	return exists, nil
}

func (s *Store) ListRifts(ctx context.Context, projectID string) ([]model.Rift, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, COALESCE(parent_rift_id, ''), created_at, is_active, is_conflict_rift
		 FROM rifts WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list rifts: %w", err)
	}
	defer rows.Close()

	var out []model.Rift
	for rows.Next() {
		var r model.Rift
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Name, &r.ParentRiftID, &r.CreatedAt, &r.IsActive, &r.IsConflictRift); err != nil {
			return nil, fmt.Errorf("sqlstore: scan rift: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CreateRift(ctx context.Context, projectID, name, parentRiftID string) (model.Rift, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return model.Rift{}, err
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rifts (id, project_id, name, parent_rift_id, is_active) VALUES (?, ?, ?, NULLIF(?, ''), TRUE)`,
		id, projectID, name, parentRiftID)
	if isDuplicateErr(err) {
		return model.Rift{}, store.ErrNameConflict
	}
	if err != nil {
		return model.Rift{}, fmt.Errorf("sqlstore: create rift: %w", err)
	}
	return s.GetRift(ctx, id)
}

func (s *Store) GetRift(ctx context.Context, riftID string) (model.Rift, error) {
	var r model.Rift
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, COALESCE(parent_rift_id, ''), created_at, is_active, is_conflict_rift
		 FROM rifts WHERE id = ?`, riftID,
	).Scan(&r.ID, &r.ProjectID, &r.Name, &r.ParentRiftID, &r.CreatedAt, &r.IsActive, &r.IsConflictRift)
	if err == sql.ErrNoRows {
		return model.Rift{}, store.ErrNotFound
	}
	if err != nil {
		return model.Rift{}, fmt.Errorf("sqlstore: get rift: %w", err)
	}
	return r, nil
}

func (s *Store) SwitchRift(ctx context.Context, userID, riftID string) error {
	rift, err := s.GetRift(ctx, riftID)
	if err != nil {
		return err
	}
	member, err := s.IsProjectMember(ctx, rift.ProjectID, userID)
	if err != nil {
		return err
	}
	if !member {
		return store.ErrNotMember
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_rift_state (user_id, project_id, current_rift_id)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE current_rift_id = VALUES(current_rift_id)`,
		userID, rift.ProjectID, riftID)
	if err != nil {
		return fmt.Errorf("sqlstore: switch rift: %w", err)
	}
	return nil
}

func (s *Store) GetUserRiftState(ctx context.Context, userID, projectID string) (model.UserRiftState, error) {
	var st model.UserRiftState
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, project_id, current_rift_id FROM user_rift_state WHERE user_id = ? AND project_id = ?`,
		userID, projectID,
	).Scan(&st.UserID, &st.ProjectID, &st.CurrentRiftID)
	if err == sql.ErrNoRows {
		return model.UserRiftState{}, store.ErrNotFound
	}
	if err != nil {
		return model.UserRiftState{}, fmt.Errorf("sqlstore: get user rift state: %w", err)
	}
	return st, nil
}

func (s *Store) GetRiftState(ctx context.Context, riftID string) (store.RiftState, error) {
	if _, err := s.GetRift(ctx, riftID); err != nil {
		return store.RiftState{}, err
	}

	out := store.RiftState{}
	lastID, err := s.GetLastCheckpointID(ctx, riftID)
	if err != nil {
		return store.RiftState{}, err
	}
	out.LastCheckpointID = lastID

	rows, err := s.db.QueryContext(ctx,
		`SELECT rift_id, path, content_hash FROM rift_files WHERE rift_id = ?`, riftID)
	if err != nil {
		return store.RiftState{}, fmt.Errorf("sqlstore: list rift files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f model.RiftFile
		if err := rows.Scan(&f.RiftID, &f.Path, &f.ContentHash); err != nil {
			return store.RiftState{}, fmt.Errorf("sqlstore: scan rift file: %w", err)
		}
		out.Files = append(out.Files, f)
	}
	return out, rows.Err()
}

func (s *Store) GetRiftHistory(ctx context.Context, riftID string, limit int) ([]model.Checkpoint, error) {
	query := `
		SELECT id, rift_id, author_user_id, timestamp, COALESCE(parent_checkpoint_id, ''), COALESCE(message, '')
		FROM checkpoints WHERE rift_id = ? ORDER BY seq DESC`
	args := []any{riftID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []model.Checkpoint
	for rows.Next() {
		var cp model.Checkpoint
		if err := rows.Scan(&cp.ID, &cp.RiftID, &cp.AuthorUserID, &cp.Timestamp, &cp.ParentCheckpointID, &cp.Message); err != nil {
			return nil, fmt.Errorf("sqlstore: scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		changes, err := s.getCheckpointChanges(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Changes = changes
	}
	return out, nil
}

func (s *Store) getCheckpointChanges(ctx context.Context, checkpointID string) ([]model.FileChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, change_type, COALESCE(new_content_hash, ''), COALESCE(moved_from, '')
		FROM checkpoint_changes WHERE checkpoint_id = ?`, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list checkpoint changes: %w", err)
	}
	defer rows.Close()

	var out []model.FileChange
	for rows.Next() {
		var ch model.FileChange
		if err := rows.Scan(&ch.Path, &ch.ChangeType, &ch.NewContentHash, &ch.MovedFrom); err != nil {
			return nil, fmt.Errorf("sqlstore: scan checkpoint change: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *Store) GetCheckpointBlobHash(ctx context.Context, riftID, checkpointID, path string) (string, error) {
	id := checkpointID
	for id != "" {
		var parent, changeType, hash string
		found := false
		rows, err := s.db.QueryContext(ctx, `
			SELECT change_type, COALESCE(new_content_hash, '')
			FROM checkpoint_changes WHERE checkpoint_id = ? AND path = ?`, id, path)
		if err != nil {
			return "", fmt.Errorf("sqlstore: walk checkpoint chain: %w", err)
		}
		for rows.Next() {
			found = true
			if err := rows.Scan(&changeType, &hash); err != nil {
				rows.Close()
				return "", fmt.Errorf("sqlstore: scan chain entry: %w", err)
			}
		}
		rows.Close()
		if found {
			if changeType == string(model.ChangeDeleted) {
				return "", store.ErrNotFound
			}
			return hash, nil
		}

		if err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(parent_checkpoint_id, '') FROM checkpoints WHERE id = ?`, id,
		).Scan(&parent); err != nil {
			return "", store.ErrNotFound
		}
		id = parent
	}
	_ = riftID
	return "", store.ErrNotFound
}

func (s *Store) CommitCheckpoint(ctx context.Context, req store.CommitRequest) (model.Checkpoint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("sqlstore: begin commit: %w", err)
	}
	defer tx.Rollback()

	// Order by seq, not timestamp: under the coordinator's debounce window
	// several checkpoints for one rift routinely land in the same
	// wall-clock second, and timestamp alone can't break that tie (see
	// schema.go). Ordering by the monotonic seq column instead guarantees
	// the new checkpoint always links to the actual latest tip, never a
	// sibling of it — a tie here would fork the chain (P4, I2).
	var currentTip sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM checkpoints WHERE rift_id = ? ORDER BY seq DESC LIMIT 1`, req.RiftID,
	).Scan(&currentTip); err != nil && err != sql.ErrNoRows {
		return model.Checkpoint{}, fmt.Errorf("sqlstore: lookup tip: %w", err)
	}

	cp := model.Checkpoint{
		ID:                 uuid.NewString(),
		RiftID:             req.RiftID,
		AuthorUserID:       req.AuthorUserID,
		ParentCheckpointID: currentTip.String,
		Message:            req.Message,
		Changes:            req.Changes,
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (id, rift_id, author_user_id, parent_checkpoint_id, message)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)`,
		cp.ID, cp.RiftID, cp.AuthorUserID, cp.ParentCheckpointID, cp.Message); err != nil {
		return model.Checkpoint{}, fmt.Errorf("sqlstore: insert checkpoint: %w", err)
	}

	for _, ch := range req.Changes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO checkpoint_changes (checkpoint_id, path, change_type, new_content_hash, moved_from)
			VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`,
			cp.ID, ch.Path, ch.ChangeType, ch.NewContentHash, ch.MovedFrom); err != nil {
			return model.Checkpoint{}, fmt.Errorf("sqlstore: insert checkpoint change: %w", err)
		}

		switch ch.ChangeType {
		case model.ChangeDeleted:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM rift_files WHERE rift_id = ? AND path = ?`, req.RiftID, ch.Path); err != nil {
				return model.Checkpoint{}, fmt.Errorf("sqlstore: delete rift file: %w", err)
			}
		case model.ChangeMoved:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM rift_files WHERE rift_id = ? AND path = ?`, req.RiftID, ch.MovedFrom); err != nil {
				return model.Checkpoint{}, fmt.Errorf("sqlstore: delete moved-from rift file: %w", err)
			}
			if err := upsertRiftFile(ctx, tx, req.RiftID, ch.Path, ch.NewContentHash); err != nil {
				return model.Checkpoint{}, err
			}
		default:
			if err := upsertRiftFile(ctx, tx, req.RiftID, ch.Path, ch.NewContentHash); err != nil {
				return model.Checkpoint{}, err
			}
		}
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT timestamp FROM checkpoints WHERE id = ?`, cp.ID,
	).Scan(&cp.Timestamp); err != nil {
		return model.Checkpoint{}, fmt.Errorf("sqlstore: reload checkpoint timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Checkpoint{}, fmt.Errorf("sqlstore: commit checkpoint tx: %w", err)
	}
	return cp, nil
}

func upsertRiftFile(ctx context.Context, tx *sql.Tx, riftID, path, hash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rift_files (rift_id, path, content_hash)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE content_hash = VALUES(content_hash)`,
		riftID, path, hash)
	if err != nil {
		return fmt.Errorf("sqlstore: upsert rift file: %w", err)
	}
	return nil
}

func (s *Store) GetLastCheckpointID(ctx context.Context, riftID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM checkpoints WHERE rift_id = ? ORDER BY seq DESC LIMIT 1`, riftID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlstore: get last checkpoint: %w", err)
	}
	return id, nil
}

func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}
