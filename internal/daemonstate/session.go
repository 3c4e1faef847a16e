package daemonstate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Session is the rift CLI's persisted identity, written after a
// successful /auth/verify call so later commands don't re-prompt
// (spec.md §8 Non-goals excludes OAuth/JWT token issuance; this is the
// minimal equivalent of a stored login).
type Session struct {
	UserID   string `toml:"user_id"`
	Username string `toml:"username"`
	Email    string `toml:"email"`
}

func sessionPath(dir string) string {
	return filepath.Join(dir, ".rift", "session.toml")
}

// LoadSession reads the persisted session, returning a zero Session if
// none exists yet.
func LoadSession(dir string) (Session, error) {
	var sess Session
	data, err := os.ReadFile(sessionPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return sess, nil
		}
		return sess, fmt.Errorf("daemonstate: read session: %w", err)
	}
	if err := toml.Unmarshal(data, &sess); err != nil {
		return sess, fmt.Errorf("daemonstate: parse session: %w", err)
	}
	return sess, nil
}

// SaveSession writes sess to dir's session file.
func SaveSession(dir string, sess Session) error {
	path := sessionPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("daemonstate: create state dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("daemonstate: create session file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(sess); err != nil {
		return fmt.Errorf("daemonstate: encode session: %w", err)
	}
	return nil
}
