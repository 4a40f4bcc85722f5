package curation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ben4mn/Pulse/internal/ai"
	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/model"
)

const (
	scoreTTL  = 6 * time.Hour
	batchSize = 20

	// Below this many distinct observed keywords the profile is too
	// cold to prompt with; scoring stays heuristic.
	coldStartKeywords = 5

	topPromptKeywords = 20
	topMatchKeywords  = 50
)

// Scorer produces a relevance score in [0,1] per item, via the external
// capability when the profile is warm enough and via a local heuristic
// otherwise. Capability failure of any kind falls back to the heuristic
// for the affected items; it never propagates.
type Scorer struct {
	capability ai.Capability // nil disables external scoring
	cache      *cache.Cache  // long-lived scope
}

func NewScorer(capability ai.Capability, c *cache.Cache) *Scorer {
	return &Scorer{capability: capability, cache: c}
}

// Score rates every item, reading the profile as input only.
func (s *Scorer) Score(ctx context.Context, items []model.FeedItem, profile *Profile) map[string]float64 {
	scores := make(map[string]float64, len(items))
	if profile == nil {
		profile = NewProfile()
	}

	if s.capability == nil || len(profile.Keywords) < coldStartKeywords {
		for _, it := range items {
			scores[it.ID] = Heuristic(it, profile)
		}
		return scores
	}

	var uncached []model.FeedItem
	for _, it := range items {
		var v float64
		if s.cache.Get(ctx, scoreKey(it.ID), scoreTTL, &v) {
			scores[it.ID] = v
		} else {
			uncached = append(uncached, it)
		}
	}

	keywords := make([]string, 0, topPromptKeywords)
	for _, kw := range profile.TopKeywords(topPromptKeywords) {
		keywords = append(keywords, kw.Word)
	}

	for start := 0; start < len(uncached); start += batchSize {
		end := start + batchSize
		if end > len(uncached) {
			end = len(uncached)
		}
		batch := uncached[start:end]

		descriptions := make([]string, len(batch))
		for i, it := range batch {
			descriptions[i] = describe(it)
		}
		got, err := s.capability.ScoreItems(ctx, keywords, descriptions)
		if err != nil {
			slog.Warn("curation: external scoring failed, using heuristic", "error", err)
			break
		}
		// The response maps back strictly by index; anything it does
		// not cover falls to the heuristic below.
		for i := 0; i < len(got) && i < len(batch); i++ {
			v := clamp01(got[i])
			scores[batch[i].ID] = v
			s.cache.Set(ctx, scoreKey(batch[i].ID), v)
		}
	}

	for _, it := range uncached {
		if _, ok := scores[it.ID]; !ok {
			scores[it.ID] = Heuristic(it, profile)
		}
	}
	return scores
}

// Heuristic scores one item from the profile alone: a neutral 0.5 base,
// up to 0.2 for the platform's share of recorded interactions, and up
// to 0.05 per matched top keyword weighted by relative frequency.
func Heuristic(item model.FeedItem, profile *Profile) float64 {
	score := 0.5

	total := profile.TotalInteractions()
	if total == 0 {
		total = 1
	}
	score += float64(profile.Platforms[string(item.Platform)]) / float64(total) * 0.2

	if item.Title != "" {
		words := map[string]struct{}{}
		for _, w := range wordSplit.Split(strings.ToLower(item.Title), -1) {
			if w != "" {
				words[w] = struct{}{}
			}
		}
		top := profile.TopKeywords(topMatchKeywords)
		maxWeight := 1
		if len(top) > 0 && top[0].Weight > 0 {
			maxWeight = top[0].Weight
		}
		for _, kw := range top {
			if _, ok := words[kw.Word]; ok {
				score += float64(kw.Weight) / float64(maxWeight) * 0.05
			}
		}
	}
	return clamp01(score)
}

func describe(it model.FeedItem) string {
	text := it.Title
	if text == "" {
		body := []rune(it.Body)
		if len(body) > 100 {
			body = body[:100]
		}
		text = string(body)
	}
	return text + " [" + string(it.Platform) + "]"
}

func scoreKey(id string) string {
	return "ai_score_" + id
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
