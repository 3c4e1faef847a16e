// Package daemonstate persists the Daemon's tracked-project history to
// .rift/metadata.toml across restarts (SPEC_FULL.md's supplemented
// metadata file, analogous to the original implementation's .mothership
// directory marker). It is read-only history for `rift daemon status
// --previous`; spec.md §4.2 keeps daemon restart shutdown-then-spawn only,
// so nothing here is auto-replayed on startup. Load/Save follow the
// teacher's internal/recipes.SaveUserRecipe read-unmarshal /
// create-encode toml pattern.
package daemonstate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// TrackedEntry records one project the Daemon has beamed, for history
// purposes only.
type TrackedEntry struct {
	ProjectID  string    `toml:"project_id" json:"project_id"`
	RiftID     string    `toml:"rift_id" json:"rift_id"`
	LocalRoot  string    `toml:"local_root" json:"local_root"`
	LastBeamed time.Time `toml:"last_beamed" json:"last_beamed"`
}

// Metadata is the on-disk shape of .rift/metadata.toml.
type Metadata struct {
	Tracked []TrackedEntry `toml:"tracked"`
}

// Path returns the metadata file path under dir (typically the user's
// home directory or $RIFT_STATE_DIR).
func Path(dir string) string {
	return filepath.Join(dir, ".rift", "metadata.toml")
}

// Load reads the metadata file at dir, returning an empty Metadata if it
// doesn't exist yet.
func Load(dir string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return md, nil
		}
		return md, fmt.Errorf("daemonstate: read metadata: %w", err)
	}
	if err := toml.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("daemonstate: parse metadata: %w", err)
	}
	return md, nil
}

// RecordBeam appends or updates projectID's tracked entry and writes the
// file back.
func RecordBeam(dir, projectID, riftID, localRoot string, at time.Time) error {
	md, err := Load(dir)
	if err != nil {
		return err
	}

	entry := TrackedEntry{ProjectID: projectID, RiftID: riftID, LocalRoot: localRoot, LastBeamed: at}
	replaced := false
	for i, e := range md.Tracked {
		if e.ProjectID == projectID {
			md.Tracked[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		md.Tracked = append(md.Tracked, entry)
	}

	return save(dir, md)
}

func save(dir string, md Metadata) error {
	path := Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("daemonstate: create state dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("daemonstate: create metadata file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(md); err != nil {
		return fmt.Errorf("daemonstate: encode metadata: %w", err)
	}
	return nil
}
