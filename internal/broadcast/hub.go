// Package broadcast fans a rift's frames out to every subscribed WebSocket
// connection. The registry and non-blocking publish pattern are adapted
// from the teacher's internal/rpc.Server watcher map (registerWatcher /
// dispatchIssueEvent): a mutex-guarded map of per-subscriber channels,
// best-effort send, and removal on panic. Unlike the teacher, which drops a
// slow watcher's event silently (a poller reconciles next round), spec.md
// §5 requires telling a slow subscriber it missed frames, so a full channel
// here triggers one Lagged notification instead of a silent drop.
package broadcast

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/riftsync/rift/internal/protocol"
	"github.com/riftsync/rift/internal/telemetry"
)

// DefaultQueueCapacity matches config.Coordinator's broadcast_queue_capacity
// default (spec.md §6).
const DefaultQueueCapacity = 1024

var (
	metricsOnce sync.Once
	subscribers metric.Int64UpDownCounter
	lagged      metric.Int64Counter
)

func initMetrics() {
	if !telemetry.Enabled() {
		return
	}
	m := telemetry.Meter("github.com/riftsync/rift/broadcast")
	subscribers, _ = m.Int64UpDownCounter("rift.broadcast.subscribers",
		metric.WithDescription("Active WebSocket subscribers across all rifts"))
	lagged, _ = m.Int64Counter("rift.broadcast.lagged",
		metric.WithDescription("Times a subscriber's queue filled and it was marked lagged"))
}

// Subscriber is a single connection's inbound queue for one rift.
type Subscriber struct {
	id         int64
	frames     chan protocol.Frame
	lagged     chan struct{} // closed once, signals the writer to emit a Lagged frame
	laggedOnce sync.Once
}

// ID uniquely identifies this subscriber within its Hub, for use with
// PublishExcept.
func (s *Subscriber) ID() int64 { return s.id }

// Frames returns the channel new frames arrive on.
func (s *Subscriber) Frames() <-chan protocol.Frame { return s.frames }

// Lagged returns a channel that's closed the first time this subscriber
// drops a frame, so the connection's writer goroutine can emit a single
// Lagged wire frame (spec.md §6) and keep reading.
func (s *Subscriber) Lagged() <-chan struct{} { return s.lagged }

// Hub fans frames out to every Subscriber registered for one rift.
type Hub struct {
	capacity int

	mu   sync.RWMutex
	subs map[int64]*Subscriber
	seq  int64
}

// NewHub creates a Hub with the given per-subscriber queue capacity.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Hub{capacity: capacity, subs: make(map[int64]*Subscriber)}
}

// Subscribe registers a new Subscriber and returns it along with an
// unsubscribe function the caller must invoke when the connection closes.
func (h *Hub) Subscribe() (*Subscriber, func()) {
	metricsOnce.Do(initMetrics)

	h.mu.Lock()
	h.seq++
	id := h.seq
	sub := &Subscriber{
		id:     id,
		frames: make(chan protocol.Frame, h.capacity),
		lagged: make(chan struct{}),
	}
	h.subs[id] = sub
	h.mu.Unlock()

	if subscribers != nil {
		subscribers.Add(context.Background(), 1)
	}
	return sub, func() { h.unsubscribe(id) }
}

func (h *Hub) unsubscribe(id int64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()

	if subscribers != nil {
		subscribers.Add(context.Background(), -1)
	}
}

// Len reports the number of active subscribers, used to skip building a
// frame payload when nobody is listening (mirrors the teacher's
// hasWatchers short-circuit in publishIssueEvent).
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers frame to every current subscriber without blocking. A
// subscriber whose queue is full is marked lagged instead of receiving the
// frame; it's on its own to catch up via a fresh RiftSnapshot after
// rejoining.
func (h *Hub) Publish(frame protocol.Frame) {
	h.PublishExcept(frame, 0)
}

// PublishExcept delivers frame to every current subscriber except the one
// identified by exclude (pass 0 to exclude nobody). Used to fan FileUpdate
// out to a rift's other sessions while withholding it from the committing
// author's own subscriber, which instead gets a CheckpointCreated frame
// directly (spec.md §4.1 step 6, P3). A subscriber whose queue is full is
// marked lagged instead of receiving the frame; it's on its own to catch up
// via a fresh RiftSnapshot after rejoining.
func (h *Hub) PublishExcept(frame protocol.Frame, exclude int64) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if exclude != 0 && s.id == exclude {
			continue
		}
		select {
		case s.frames <- frame:
		default:
			s.laggedOnce.Do(func() {
				close(s.lagged)
				if lagged != nil {
					lagged.Add(context.Background(), 1)
				}
			})
		}
	}
}

// Registry holds one Hub per rift, created lazily on first use.
type Registry struct {
	capacity int

	mu   sync.Mutex
	hubs map[string]*Hub
}

// NewRegistry creates a Registry whose Hubs use the given per-subscriber
// queue capacity.
func NewRegistry(capacity int) *Registry {
	return &Registry{capacity: capacity, hubs: make(map[string]*Hub)}
}

// HubFor returns the Hub for riftID, creating it on first access.
func (r *Registry) HubFor(riftID string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[riftID]
	if !ok {
		h = NewHub(r.capacity)
		r.hubs[riftID] = h
	}
	return h
}
