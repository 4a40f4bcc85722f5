package aggregate

import (
	"sync"
	"time"
)

// RateLimitHit is one recorded upstream rate-limit occurrence.
type RateLimitHit struct {
	Endpoint  string `json:"endpoint"`
	Timestamp int64  `json:"timestamp"`
}

// RateLimitNotifier accumulates rate-limit hits so the user can see
// cumulative friction even when pages still render degraded results.
// Dismiss clears the active flag but keeps the history.
type RateLimitNotifier struct {
	mu     sync.Mutex
	active bool
	hits   []RateLimitHit
}

func NewRateLimitNotifier() *RateLimitNotifier {
	return &RateLimitNotifier{}
}

func (n *RateLimitNotifier) Notify(endpoint string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = true
	n.hits = append(n.hits, RateLimitHit{Endpoint: endpoint, Timestamp: time.Now().UnixMilli()})
}

func (n *RateLimitNotifier) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

func (n *RateLimitNotifier) Hits() []RateLimitHit {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]RateLimitHit, len(n.hits))
	copy(out, n.hits)
	return out
}

func (n *RateLimitNotifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = false
}
