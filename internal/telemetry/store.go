package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/riftsync/rift/internal/model"
	"github.com/riftsync/rift/internal/store"
)

const storeScopeName = "github.com/riftsync/rift/store"

// InstrumentedStore wraps store.Store with rift.store.* metrics, adapted
// from the teacher's InstrumentedStorage (internal/telemetry/storage.go)
// but metrics-only: spec.md's ambient stack keeps observability but drops
// distributed tracing for this system. Use Wrap; it returns the original
// store unchanged when telemetry is disabled.
type InstrumentedStore struct {
	inner store.Store
	ops   metric.Int64Counter
	dur   metric.Float64Histogram
	errs  metric.Int64Counter
}

// Wrap decorates s with OTel metrics. When telemetry is disabled, s is
// returned as-is with zero overhead.
func Wrap(s store.Store) store.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("rift.store.operations",
		metric.WithDescription("Total store operations executed"))
	dur, _ := m.Float64Histogram("rift.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"))
	errs, _ := m.Int64Counter("rift.store.errors",
		metric.WithDescription("Total store operation errors"))
	return &InstrumentedStore{inner: s, ops: ops, dur: dur, errs: errs}
}

func (s *InstrumentedStore) record(ctx context.Context, op string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("rift.store.op", op))
	s.ops.Add(ctx, 1, attrs)
	s.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		s.errs.Add(ctx, 1, attrs)
	}
}

func (s *InstrumentedStore) CreateUser(ctx context.Context, username, email string) (model.User, error) {
	t := time.Now()
	v, err := s.inner.CreateUser(ctx, username, email)
	s.record(ctx, "CreateUser", t, err)
	return v, err
}

func (s *InstrumentedStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	t := time.Now()
	v, err := s.inner.GetUserByUsername(ctx, username)
	s.record(ctx, "GetUserByUsername", t, err)
	return v, err
}

func (s *InstrumentedStore) CreateProject(ctx context.Context, name, description, ownerUserID string) (model.Project, model.Rift, error) {
	t := time.Now()
	p, r, err := s.inner.CreateProject(ctx, name, description, ownerUserID)
	s.record(ctx, "CreateProject", t, err)
	return p, r, err
}

func (s *InstrumentedStore) ListProjectsForUser(ctx context.Context, userID string, includeInactive bool) ([]model.Project, error) {
	t := time.Now()
	v, err := s.inner.ListProjectsForUser(ctx, userID, includeInactive)
	s.record(ctx, "ListProjectsForUser", t, err)
	return v, err
}

func (s *InstrumentedStore) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	t := time.Now()
	v, err := s.inner.GetProject(ctx, projectID)
	s.record(ctx, "GetProject", t, err)
	return v, err
}

func (s *InstrumentedStore) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	t := time.Now()
	v, err := s.inner.IsProjectMember(ctx, projectID, userID)
	s.record(ctx, "IsProjectMember", t, err)
	return v, err
}

func (s *InstrumentedStore) ListRifts(ctx context.Context, projectID string) ([]model.Rift, error) {
	t := time.Now()
	v, err := s.inner.ListRifts(ctx, projectID)
	s.record(ctx, "ListRifts", t, err)
	return v, err
}

func (s *InstrumentedStore) GetRift(ctx context.Context, riftID string) (model.Rift, error) {
	t := time.Now()
	v, err := s.inner.GetRift(ctx, riftID)
	s.record(ctx, "GetRift", t, err)
	return v, err
}

func (s *InstrumentedStore) SwitchRift(ctx context.Context, userID, riftID string) error {
	t := time.Now()
	err := s.inner.SwitchRift(ctx, userID, riftID)
	s.record(ctx, "SwitchRift", t, err)
	return err
}

func (s *InstrumentedStore) GetUserRiftState(ctx context.Context, userID, projectID string) (model.UserRiftState, error) {
	t := time.Now()
	v, err := s.inner.GetUserRiftState(ctx, userID, projectID)
	s.record(ctx, "GetUserRiftState", t, err)
	return v, err
}

func (s *InstrumentedStore) GetRiftState(ctx context.Context, riftID string) (store.RiftState, error) {
	t := time.Now()
	v, err := s.inner.GetRiftState(ctx, riftID)
	s.record(ctx, "GetRiftState", t, err)
	return v, err
}

func (s *InstrumentedStore) GetRiftHistory(ctx context.Context, riftID string, limit int) ([]model.Checkpoint, error) {
	t := time.Now()
	v, err := s.inner.GetRiftHistory(ctx, riftID, limit)
	s.record(ctx, "GetRiftHistory", t, err)
	return v, err
}

func (s *InstrumentedStore) GetCheckpointBlobHash(ctx context.Context, riftID, checkpointID, path string) (string, error) {
	t := time.Now()
	v, err := s.inner.GetCheckpointBlobHash(ctx, riftID, checkpointID, path)
	s.record(ctx, "GetCheckpointBlobHash", t, err)
	return v, err
}

func (s *InstrumentedStore) CommitCheckpoint(ctx context.Context, req store.CommitRequest) (model.Checkpoint, error) {
	t := time.Now()
	v, err := s.inner.CommitCheckpoint(ctx, req)
	s.record(ctx, "CommitCheckpoint", t, err)
	return v, err
}

func (s *InstrumentedStore) GetLastCheckpointID(ctx context.Context, riftID string) (string, error) {
	t := time.Now()
	v, err := s.inner.GetLastCheckpointID(ctx, riftID)
	s.record(ctx, "GetLastCheckpointID", t, err)
	return v, err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

var _ store.Store = (*InstrumentedStore)(nil)
