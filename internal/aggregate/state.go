package aggregate

import (
	"sync"

	"github.com/ben4mn/Pulse/internal/model"
)

// State holds the currently delivered feed snapshot. Enrichment
// mutates it by id through copy-on-write replacement of the single
// matching entry, so concurrent readers never observe a torn item.
type State struct {
	mu    sync.RWMutex
	items []model.FeedItem
}

func NewState() *State {
	return &State{}
}

func (s *State) Set(items []model.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

func (s *State) Append(items []model.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.FeedItem, 0, len(s.items)+len(items))
	next = append(next, s.items...)
	next = append(next, items...)
	s.items = next
}

// Items returns a copy of the current snapshot.
func (s *State) Items() []model.FeedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FeedItem, len(s.items))
	copy(out, s.items)
	return out
}

// UpdateSummary sets the summary on the item with the given id, if
// still present. Updates arriving after the item left the snapshot are
// silently dropped.
func (s *State) UpdateSummary(id, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			next := make([]model.FeedItem, len(s.items))
			copy(next, s.items)
			next[i].Summary = summary
			s.items = next
			return
		}
	}
}

func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
