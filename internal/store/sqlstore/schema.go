package sqlstore

// schemaStatements is executed in order at Open time. Every statement is
// idempotent so repeated startups against the same database are no-ops,
// the same convention the teacher's sqlite/ephemeral schema.go files use.
// There is no migration framework here by design (spec.md §9 scopes SQL
// schema evolution tooling out) — adding a column means editing the
// CREATE TABLE below and accepting that existing deployments need a
// manual ALTER, same as any additive schema change on a hand-run database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username VARCHAR(255) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'user'
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rifts (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name VARCHAR(255) NOT NULL,
		parent_rift_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_conflict_rift BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (project_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS rift_files (
		rift_id TEXT NOT NULL,
		path VARCHAR(1024) NOT NULL,
		content_hash VARCHAR(64) NOT NULL,
		PRIMARY KEY (rift_id, path)
	)`,
	// seq is the tip-ordering column: timestamp is TIMESTAMP (second
	// precision), and the 250ms debounce routinely commits several
	// checkpoints to one rift within the same second, so ORDER BY
	// timestamp alone can't tell which of a tied pair is actually the
	// latest. seq is monotonic per insert and breaks the tie.
	`CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		rift_id TEXT NOT NULL,
		author_user_id TEXT NOT NULL,
		seq BIGINT NOT NULL AUTO_INCREMENT,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		parent_checkpoint_id TEXT,
		message TEXT,
		UNIQUE KEY checkpoints_seq_idx (seq)
	)`,
	`CREATE TABLE IF NOT EXISTS checkpoint_changes (
		checkpoint_id TEXT NOT NULL,
		path VARCHAR(1024) NOT NULL,
		change_type VARCHAR(16) NOT NULL,
		new_content_hash VARCHAR(64),
		moved_from VARCHAR(1024)
	)`,
	`CREATE TABLE IF NOT EXISTS user_rift_state (
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		current_rift_id TEXT NOT NULL,
		PRIMARY KEY (user_id, project_id)
	)`,
}
