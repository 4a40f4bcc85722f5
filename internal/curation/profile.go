// Package curation tracks lightweight interaction signals and turns
// them into per-item relevance scores.
package curation

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/model"
)

const (
	profileKey = "pulse_interest_profile"
	// Freshness window for the persisted profile. The profile is
	// best-effort state: an expired or missing read is a cold start.
	profileTTL = 365 * 24 * time.Hour
)

// Profile accumulates interaction counts. It only grows; reset happens
// externally by dropping the persisted value.
type Profile struct {
	Keywords  map[string]int `json:"keywords" yaml:"keywords"`
	Domains   map[string]int `json:"domains" yaml:"domains"`
	Platforms map[string]int `json:"platforms" yaml:"platforms"`
}

func NewProfile() *Profile {
	return &Profile{
		Keywords:  map[string]int{},
		Domains:   map[string]int{},
		Platforms: map[string]int{},
	}
}

// Keyword is one interest keyword with its accumulated weight.
type Keyword struct {
	Word   string
	Weight int
}

// TopKeywords returns up to n keywords ordered by weight descending.
// Ties break alphabetically so the order is deterministic.
func (p *Profile) TopKeywords(n int) []Keyword {
	out := make([]Keyword, 0, len(p.Keywords))
	for w, weight := range p.Keywords {
		out = append(out, Keyword{Word: w, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Word < out[j].Word
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// TotalInteractions is the sum of per-platform interaction counts.
func (p *Profile) TotalInteractions() int {
	total := 0
	for _, n := range p.Platforms {
		total += n
	}
	return total
}

var wordSplit = regexp.MustCompile(`\W+`)

// RecordInteraction folds one user interaction (open, upvote, read)
// into the profile: platform count, title keywords longer than three
// characters, and the URL's hostname.
func RecordInteraction(p *Profile, item model.FeedItem) {
	p.Platforms[string(item.Platform)]++

	for _, word := range titleTokens(item.Title) {
		p.Keywords[word]++
	}

	if item.URL != "" {
		if u, err := url.Parse(item.URL); err == nil && u.Hostname() != "" {
			p.Domains[u.Hostname()]++
		}
	}
}

func titleTokens(title string) []string {
	if title == "" {
		return nil
	}
	var out []string
	for _, w := range wordSplit.Split(strings.ToLower(title), -1) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// Store persists the profile in the long-lived cache scope. Reads of a
// missing or corrupt profile return a fresh empty one.
type Store struct {
	cache *cache.Cache
}

func NewStore(c *cache.Cache) *Store {
	return &Store{cache: c}
}

func (s *Store) Load(ctx context.Context) *Profile {
	p := NewProfile()
	if !s.cache.Get(ctx, profileKey, profileTTL, p) {
		return NewProfile()
	}
	if p.Keywords == nil {
		p.Keywords = map[string]int{}
	}
	if p.Domains == nil {
		p.Domains = map[string]int{}
	}
	if p.Platforms == nil {
		p.Platforms = map[string]int{}
	}
	return p
}

func (s *Store) Save(ctx context.Context, p *Profile) {
	s.cache.Set(ctx, profileKey, p)
}

// Reset drops the persisted profile.
func (s *Store) Reset(ctx context.Context) {
	s.cache.Delete(ctx, profileKey)
}
