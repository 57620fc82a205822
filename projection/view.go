// Package projection builds local message views from a history snapshot and
// observed live events. Handles ordering and deduplication. Does not emit
// events or interact with UI directly.
package projection

import (
	"sort"
	"sync"

	"chat-sync/domain"

	"github.com/google/uuid"
)

// View is one session's reconciled picture of a channel: an ordered,
// duplicate-free sequence of messages. The fetch/subscribe race can deliver
// the same message through both sources and the live feed can deliver out
// of (created_at, id) order when a delayed send commits late; the fold
// absorbs both.
type View struct {
	mu       sync.RWMutex
	messages []domain.Message
	seen     map[uuid.UUID]struct{}
}

func NewView() *View {
	return &View{seen: make(map[uuid.UUID]struct{})}
}

// Reset replaces the view wholesale with a history snapshot. The snapshot
// itself goes through the same fold, so a duplicate or misordered entry in
// it cannot corrupt the view.
func (v *View) Reset(snapshot []domain.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = nil
	v.seen = make(map[uuid.UUID]struct{}, len(snapshot))
	for _, message := range snapshot {
		v.apply(message)
	}
}

// Apply folds one live event into the view. It reports whether the message
// was new: a message whose id is already present is discarded, making the
// fold idempotent under at-least-once delivery.
func (v *View) Apply(message domain.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.apply(message)
}

func (v *View) apply(message domain.Message) bool {
	if _, ok := v.seen[message.ID]; ok {
		return false
	}
	v.seen[message.ID] = struct{}{}

	// Insert at the (created_at, id) position, not at the end.
	i := sort.Search(len(v.messages), func(i int) bool {
		return message.Before(v.messages[i])
	})
	v.messages = append(v.messages, domain.Message{})
	copy(v.messages[i+1:], v.messages[i:])
	v.messages[i] = message
	return true
}

// Snapshot returns a copy of the current view in channel order. Callers
// never observe later folds through it.
func (v *View) Snapshot() []domain.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]domain.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Len reports how many distinct messages the view holds.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.messages)
}
