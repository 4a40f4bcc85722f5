// Package mixer merges items from multiple sources into one
// deduplicated, ranked sequence. It is a pure function over
// already-fetched items.
package mixer

import (
	"math"
	"sort"
	"time"

	"github.com/ben4mn/Pulse/internal/model"
)

// Mix flattens the input lists, deduplicates by URL (first occurrence
// wins, in input list order; items without a URL never deduplicate),
// and sorts by composite score descending. The sort is stable so equal
// scores keep input order across runs.
func Mix(feeds ...[]model.FeedItem) []model.FeedItem {
	return mixAt(time.Now().UnixMilli(), feeds)
}

func mixAt(now int64, feeds [][]model.FeedItem) []model.FeedItem {
	total := 0
	for _, f := range feeds {
		total += len(f)
	}

	seen := make(map[string]struct{}, total)
	unique := make([]model.FeedItem, 0, total)
	for _, feed := range feeds {
		for _, item := range feed {
			if item.URL != "" {
				if _, dup := seen[item.URL]; dup {
					continue
				}
				seen[item.URL] = struct{}{}
			}
			unique = append(unique, item)
		}
	}

	scores := make([]float64, len(unique))
	for i, item := range unique {
		scores[i] = rankScore(item, now)
	}
	idx := make([]int, len(unique))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	out := make([]model.FeedItem, len(unique))
	for i, j := range idx {
		out[i] = unique[j]
	}
	return out
}

// rankScore combines recency, engagement and learned relevance:
// 0.5*timeDecay + 0.3*engagement + 0.2*relevance. Recency halves every
// six hours; engagement is log-scaled native score; relevance is the
// item's aiScore with a neutral 0.5 prior. Negative age (clock skew)
// just pushes the decay term above 1, which is harmless.
func rankScore(item model.FeedItem, now int64) float64 {
	ageHours := float64(now-item.Timestamp) / (1000 * 60 * 60)
	timeScore := math.Pow(0.5, ageHours/6)

	engagement := math.Log10(1+float64(item.Score)) / 5

	relevance := 0.5
	if item.AIScore != nil {
		relevance = *item.AIScore
	}

	return 0.5*timeScore + 0.3*engagement + 0.2*relevance
}
