// Package daemon implements the per-workstation Daemon of spec.md §4.2: a
// local file watcher, a loopback IPC server for the Client, and one
// reconnecting WebSocket relay per tracked project. It owns the user's
// local working copy of each rift it tracks; the Coordinator owns the
// canonical state.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/riftsync/rift/internal/config"
	"github.com/riftsync/rift/internal/coordinatorclient"
	"github.com/riftsync/rift/internal/daemonstate"
	"github.com/riftsync/rift/internal/model"
)

// defaultRiftName is used when a beam request omits rift_name, matching
// the rift every new project starts with (sqlstore.CreateProject).
const defaultRiftName = "main"

// TrackedProject is the in-memory record of one beamed project (spec.md
// §3 "TrackedProject (in-memory, Daemon-only)"). Lifetime runs from beam to
// disconnect.
type TrackedProject struct {
	ProjectID string
	RiftID    string
	LocalRoot string

	cancel context.CancelFunc
	client *relayClient
	watch  *watcher

	suppress *suppressionMap
}

// Daemon tracks beamed projects and serves the local IPC API a Client talks
// to. Grounded in the teacher's cmd/bd daemon lifecycle (configureDaemonProcess
// for detachment, handled by internal/spawn instead) generalized from a
// single-repo bd daemon to a multi-project registry.
type Daemon struct {
	cfg   config.Daemon
	log   *slog.Logger
	coord *coordinatorclient.Client

	mu       sync.Mutex
	projects map[string]*TrackedProject // keyed by project_id

	httpServer *ipcServer
}

// New builds a Daemon ready to Run.
func New(cfg config.Daemon, log *slog.Logger) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	d := &Daemon{
		cfg:      cfg,
		log:      log,
		coord:    coordinatorclient.New(cfg.CoordinatorURL),
		projects: make(map[string]*TrackedProject),
	}
	d.httpServer = newIPCServer(d, log)
	return d
}

// Handler returns the Daemon's local IPC HTTP handler, for use with
// httptest or a custom *http.Server (mirrors coordinator.Server.Handler).
func (d *Daemon) Handler() http.Handler { return d.httpServer.Handler() }

// Run starts the IPC server and blocks until ctx is cancelled, then beams
// down every tracked project (spec.md §4.2 "disconnect" semantics applied
// to every project at once).
func (d *Daemon) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- d.httpServer.listenAndServe(d.cfg.IPCPort) }()

	select {
	case <-ctx.Done():
		d.shutdownAll()
		return d.httpServer.shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func (d *Daemon) shutdownAll() {
	d.mu.Lock()
	projects := make([]*TrackedProject, 0, len(d.projects))
	for _, p := range d.projects {
		projects = append(projects, p)
	}
	d.projects = make(map[string]*TrackedProject)
	d.mu.Unlock()

	for _, p := range projects {
		d.disconnectProject(p)
	}
}

// Beam resolves projectName (and riftName, defaulting to "main") against
// the Coordinator, then tracks the resolved rift rooted at localRoot: it
// opens a WebSocket relay, starts a local filesystem watcher, and records
// the TrackedProject (spec.md §2 data-flow step 2, §4.2 "POST /beam
// {project_name}" — the Daemon resolves the human-readable name itself
// rather than making the Client pass raw UUIDs). Beaming an
// already-tracked project is an idempotent reconnect (spec.md I4), so a
// prior tracking entry is torn down first.
func (d *Daemon) Beam(ctx context.Context, projectName, riftName, userID, localRoot string) (*TrackedProject, error) {
	proj, err := d.resolveProject(ctx, userID, projectName)
	if err != nil {
		return nil, err
	}
	rift, err := d.resolveRift(ctx, proj.ID, riftName)
	if err != nil {
		return nil, err
	}
	projectID, riftID := proj.ID, rift.ID

	d.mu.Lock()
	if existing, ok := d.projects[projectID]; ok {
		d.mu.Unlock()
		d.disconnectProject(existing)
		d.mu.Lock()
	}
	d.mu.Unlock()

	beamCtx, cancel := context.WithCancel(ctx)

	suppress := newSuppressionMap(d.cfg.SuppressionWindow)
	client := newRelayClient(d.cfg.CoordinatorURL, riftID, userID, localRoot, suppress, d.log)
	w, err := newWatcher(localRoot, d.cfg.DebounceWindow, d.cfg.IgnorePatterns, suppress, client.onLocalChange, d.log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("daemon: start watcher for %s: %w", localRoot, err)
	}

	tp := &TrackedProject{
		ProjectID: projectID,
		RiftID:    riftID,
		LocalRoot: localRoot,
		cancel:    cancel,
		client:    client,
		watch:     w,
		suppress:  suppress,
	}

	go client.run(beamCtx)
	if err := w.start(beamCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("daemon: watch %s: %w", localRoot, err)
	}

	d.mu.Lock()
	d.projects[projectID] = tp
	d.mu.Unlock()

	if d.cfg.StateDir != "" {
		if err := daemonstate.RecordBeam(d.cfg.StateDir, projectID, riftID, localRoot, time.Now().UTC()); err != nil {
			d.log.Warn("failed to record beam history", "error", err)
		}
	}

	return tp, nil
}

// resolveProject looks up the caller's projects on the Coordinator and
// returns the one named projectName, case-sensitively (project names are
// unique per the Coordinator's UNIQUE (name) constraint).
func (d *Daemon) resolveProject(ctx context.Context, userID, projectName string) (model.Project, error) {
	projects, err := d.coord.ListProjects(ctx, userID, true)
	if err != nil {
		return model.Project{}, fmt.Errorf("daemon: list projects for %s: %w", userID, err)
	}
	for _, p := range projects {
		if p.Name == projectName {
			return p, nil
		}
	}
	return model.Project{}, fmt.Errorf("daemon: no project named %q for this user", projectName)
}

// resolveRift looks up projectID's rifts on the Coordinator and returns the
// one named riftName, defaulting to defaultRiftName when riftName is empty.
func (d *Daemon) resolveRift(ctx context.Context, projectID, riftName string) (model.Rift, error) {
	if riftName == "" {
		riftName = defaultRiftName
	}
	rifts, err := d.coord.ListRifts(ctx, projectID)
	if err != nil {
		return model.Rift{}, fmt.Errorf("daemon: list rifts for project %s: %w", projectID, err)
	}
	for _, r := range rifts {
		if r.Name == riftName {
			return r, nil
		}
	}
	return model.Rift{}, fmt.Errorf("daemon: no rift named %q in this project", riftName)
}

// PreviouslyTracked returns the tracked-project history recorded in
// .rift/metadata.toml, for `rift daemon status --previous`. It is never
// consulted by Beam/Run — spec.md §4.2 keeps daemon restart shutdown-then-
// spawn only, with no automatic re-beaming.
func (d *Daemon) PreviouslyTracked() ([]daemonstate.TrackedEntry, error) {
	if d.cfg.StateDir == "" {
		return nil, nil
	}
	md, err := daemonstate.Load(d.cfg.StateDir)
	if err != nil {
		return nil, err
	}
	return md.Tracked, nil
}

// Disconnect stops tracking projectID, per spec.md §4.2's disconnect steps:
// cancel the project task, flush in-flight work, leave the rift, stop the
// watcher.
func (d *Daemon) Disconnect(projectID string) error {
	d.mu.Lock()
	p, ok := d.projects[projectID]
	if ok {
		delete(d.projects, projectID)
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("daemon: project %s is not tracked", projectID)
	}
	d.disconnectProject(p)
	return nil
}

func (d *Daemon) disconnectProject(p *TrackedProject) {
	p.cancel()
	p.watch.stop()
	p.client.close()
}

// Status describes one tracked project for the IPC /status endpoint.
// CheckpointCount/InitialSyncRequired supplement spec.md's bare project id
// response per SPEC_FULL.md's BeamResponse (original_source/mothership-cli/
// src/beam.rs), populated once the first RiftSnapshot for the rift arrives.
type Status struct {
	ProjectID           string `json:"project_id"`
	RiftID              string `json:"rift_id"`
	LocalRoot           string `json:"local_root"`
	Connected           bool   `json:"connected"`
	CheckpointCount     int    `json:"checkpoint_count"`
	InitialSyncRequired bool   `json:"initial_sync_required"`
}

func statusOf(p *TrackedProject) Status {
	count, initial := p.client.syncInfo()
	return Status{
		ProjectID:           p.ProjectID,
		RiftID:              p.RiftID,
		LocalRoot:           p.LocalRoot,
		Connected:           p.client.connected(),
		CheckpointCount:     count,
		InitialSyncRequired: initial,
	}
}

// ListTracked returns the current tracked-project set.
func (d *Daemon) ListTracked() []Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Status, 0, len(d.projects))
	for _, p := range d.projects {
		out = append(out, statusOf(p))
	}
	return out
}
