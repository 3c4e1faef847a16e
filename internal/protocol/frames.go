// Package protocol defines the WebSocket frame grammar shared by the
// Coordinator and Daemon (spec.md §6). Every frame carries a "type" tag and
// frame-specific fields, matching the original Rust implementation's
// serde(tag = "type", content = "data") convention but flattened for Go's
// encoding/json (no separate "data" envelope field).
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// FrameType identifies the variant of a Frame.
type FrameType string

const (
	TypeJoinRift         FrameType = "JoinRift"
	TypeLeaveRift        FrameType = "LeaveRift"
	TypeFileChanged      FrameType = "FileChanged"
	TypeRiftSnapshot     FrameType = "RiftSnapshot"
	TypeFileUpdate       FrameType = "FileUpdate"
	TypeCheckpointCreated FrameType = "CheckpointCreated"
	TypeUserJoined       FrameType = "UserJoined"
	TypeUserLeft         FrameType = "UserLeft"
	TypeConflictDetected FrameType = "ConflictDetected"
	TypeLagged           FrameType = "Lagged"
	TypeHeartbeat        FrameType = "Heartbeat"
	TypeError            FrameType = "Error"
)

// Frame is the envelope every WebSocket message is wrapped in. Exactly one
// of the typed payload fields below is populated, matching Type.
type Frame struct {
	Type FrameType `json:"type"`

	JoinRift         *JoinRift         `json:"join_rift,omitempty"`
	LeaveRift        *LeaveRift        `json:"leave_rift,omitempty"`
	FileChanged      *FileChanged      `json:"file_changed,omitempty"`
	RiftSnapshot     *RiftSnapshot     `json:"rift_snapshot,omitempty"`
	FileUpdate       *FileUpdate       `json:"file_update,omitempty"`
	CheckpointCreated *CheckpointCreated `json:"checkpoint_created,omitempty"`
	UserJoined       *UserPresence     `json:"user_joined,omitempty"`
	UserLeft         *UserPresence     `json:"user_left,omitempty"`
	ConflictDetected *ConflictDetected `json:"conflict_detected,omitempty"`
	Lagged           *Lagged           `json:"lagged,omitempty"`
	Error            *ErrorFrame       `json:"error,omitempty"`
}

// JoinRift is sent client→server to subscribe to a rift; triggers a
// RiftSnapshot followed by subscription activation (spec.md §4.1).
type JoinRift struct {
	RiftID string `json:"rift_id"`
}

// LeaveRift is sent client→server to unsubscribe. Idempotent.
type LeaveRift struct {
	RiftID string `json:"rift_id"`
}

// FileChanged reports a single file edit, or a deletion when Deleted is
// true (in which case Content is empty and ignored). Content is UTF-8 or
// base64 for binary payloads; the caller is responsible for choosing an
// encoding the far end understands (plain UTF-8 here, since blobs are
// treated as text content in this core). A rename surfaces as a Remove of
// the old path plus a Create of the new one (spec.md §9 Open Questions
// permits either a dedicated Move or Delete(old)+Create(new); the daemon's
// filesystem watcher can't correlate a Rename's two fsnotify events without
// extra bookkeeping, so it takes the simpler Delete+Create path).
type FileChanged struct {
	RiftID   string    `json:"rift_id"`
	Path     string    `json:"path"`
	Content  string    `json:"content"`
	Deleted  bool      `json:"deleted,omitempty"`
	ClientTS time.Time `json:"client_ts"`
}

// SnapshotFile is one entry of a RiftSnapshot's file set.
type SnapshotFile struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	Content string `json:"content,omitempty"`
}

// RiftSnapshot is emitted once per successful JoinRift (spec.md §4.1, §9).
// Content is inlined for small rifts; above SnapshotInlineThresholdBytes a
// snapshot entry omits Content and the daemon fetches the blob separately
// via GET /checkpoints/{id}/blob/{path} (spec.md §9 Open Questions).
type RiftSnapshot struct {
	RiftID             string         `json:"rift_id"`
	LastCheckpointID   string         `json:"last_checkpoint_id,omitempty"`
	Files              []SnapshotFile `json:"files"`
}

// FileUpdate fans an applied change out to other subscribers. Deleted
// mirrors FileChanged.Deleted: when true, Content is empty and the
// receiving daemon should remove its local copy of Path instead of
// writing one.
type FileUpdate struct {
	RiftID       string    `json:"rift_id"`
	Path         string    `json:"path"`
	Content      string    `json:"content"`
	Deleted      bool      `json:"deleted,omitempty"`
	Author       string    `json:"author"`
	ServerTS     time.Time `json:"server_ts"`
	CheckpointID string    `json:"checkpoint_id"`
}

// CheckpointCreated is emitted to the committing author only (P3).
type CheckpointCreated struct {
	RiftID     string    `json:"rift_id"`
	Checkpoint CheckpointWire `json:"checkpoint"`
}

// CheckpointWire is the wire representation of model.Checkpoint.
type CheckpointWire struct {
	ID                 string           `json:"id"`
	RiftID             string           `json:"rift_id"`
	Author             string           `json:"author"`
	Timestamp          time.Time        `json:"timestamp"`
	ParentCheckpointID string           `json:"parent_checkpoint_id,omitempty"`
	Message            string           `json:"message,omitempty"`
	Changes            []FileChangeWire `json:"changes"`
}

// FileChangeWire is the wire representation of model.FileChange.
type FileChangeWire struct {
	Path       string `json:"path"`
	ChangeType string `json:"change_type"`
	Hash       string `json:"new_content_hash,omitempty"`
	MovedFrom  string `json:"moved_from,omitempty"`
}

// UserPresence carries UserJoined/UserLeft payloads.
type UserPresence struct {
	RiftID string `json:"rift_id"`
	UserID string `json:"user_id"`
}

// ConflictDetected is advisory; it never blocks the session (spec.md §7).
type ConflictDetected struct {
	RiftID     string `json:"rift_id"`
	Path       string `json:"path"`
	LocalHash  string `json:"local_hash"`
	RemoteHash string `json:"remote_hash"`
}

// Lagged tells a subscriber its send queue overflowed and it was dropped;
// it must re-JoinRift to resync (spec.md §4.1 backpressure policy).
type Lagged struct {
	RiftID string `json:"rift_id"`
}

// ErrorFrame is non-fatal; the session stays open after it is sent.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode marshals f to a single JSON text frame.
func (f Frame) Encode() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s frame: %w", f.Type, err)
	}
	return b, nil
}

// Decode parses a single JSON text frame into f.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("protocol: decode frame: missing type")
	}
	return f, nil
}

// Heartbeat is the bidirectional keepalive frame (spec.md §6); it carries no
// payload, so a bare Frame{Type: TypeHeartbeat} suffices and needs no struct.
func Heartbeat() Frame {
	return Frame{Type: TypeHeartbeat}
}
