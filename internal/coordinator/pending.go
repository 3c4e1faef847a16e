package coordinator

import "sync"

// pendingEdit is one path's most recent buffered change: either new
// content or a deletion.
type pendingEdit struct {
	Content string
	Deleted bool
}

// pendingBatch accumulates FileChanged frames for one session between
// debounce fires, so a burst of edits commits as a single checkpoint
// (spec.md §4.1 step-by-step commit algorithm). ChangeType per path isn't
// known until flush time, when it's resolved against the rift's current
// file table, so only the raw edit is buffered here.
type pendingBatch struct {
	RiftID       string
	AuthorUserID string
	Edits        map[string]pendingEdit // path -> latest edit, last write wins
}

// pendingStore holds one pendingBatch per active session.
type pendingStore struct {
	mu      sync.Mutex
	batches map[string]*pendingBatch
}

func newPendingStore() *pendingStore {
	return &pendingStore{batches: make(map[string]*pendingBatch)}
}

// Append records a file change for sessionID, creating its batch if absent.
func (p *pendingStore) Append(sessionID, riftID, authorUserID, path string, edit pendingEdit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.batches[sessionID]
	if !ok {
		b = &pendingBatch{RiftID: riftID, AuthorUserID: authorUserID, Edits: make(map[string]pendingEdit)}
		p.batches[sessionID] = b
	}
	b.Edits[path] = edit
}

// Take removes and returns sessionID's batch, or nil if there is none.
func (p *pendingStore) Take(sessionID string) *pendingBatch {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.batches[sessionID]
	if !ok {
		return nil
	}
	delete(p.batches, sessionID)
	return b
}
