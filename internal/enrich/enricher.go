// Package enrich attaches short summaries to already-delivered feed
// items as a low-priority background task.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ben4mn/Pulse/internal/ai"
	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/extract"
	"github.com/ben4mn/Pulse/internal/model"
)

const (
	summaryTTL = 24 * time.Hour

	// Extracted text shorter than this is too thin to summarize;
	// longer text is truncated before submission to bound cost.
	minTextRunes = 200
	maxTextRunes = 4000
)

var errSkipped = errors.New("enrich: item skipped")

// OnSummary receives incremental per-item updates. Items are addressed
// by id so out-of-order arrival is safe for the receiver.
type OnSummary func(id, summary string)

// Enricher runs one cancellable, strictly sequential summary pass over
// a snapshot of items. Starting a new run always supersedes the
// previous one: a superseded run never emits again.
type Enricher struct {
	capability ai.Capability
	extractor  extract.Extractor
	cache      *cache.Cache // long-lived scope

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	done   chan struct{}
}

func New(capability ai.Capability, extractor extract.Extractor, c *cache.Cache) *Enricher {
	return &Enricher{capability: capability, extractor: extractor, cache: c}
}

// Start cancels any in-flight run and begins a new one over items.
func (e *Enricher) Start(items []model.FeedItem, onSummary OnSummary) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.gen++
	gen := e.gen
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		e.run(ctx, gen, items, onSummary)
	}()
}

// Cancel stops the current run, if any.
func (e *Enricher) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Done returns a channel closed when the latest run finishes. Nil when
// no run has started.
func (e *Enricher) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Known reports a previously produced summary for the item, if the
// long-lived record still holds one. Fetch paths use it to surface
// enrichment finished after the response that triggered it.
func (e *Enricher) Known(ctx context.Context, id string) (string, bool) {
	var cached ai.Summary
	if e.cache.Get(ctx, summaryKey(id), summaryTTL, &cached) {
		return cached.Short, true
	}
	return "", false
}

func (e *Enricher) run(ctx context.Context, gen uint64, items []model.FeedItem, onSummary OnSummary) {
	for _, item := range items {
		// Cancellation is observed between items, never mid-item.
		select {
		case <-ctx.Done():
			return
		default:
		}
		if item.Title == "" || item.URL == "" {
			continue
		}

		var cached ai.Summary
		if e.cache.Get(ctx, summaryKey(item.ID), summaryTTL, &cached) {
			e.emit(gen, onSummary, item.ID, cached.Short)
			continue
		}

		sum, err := e.summarize(ctx, item)
		if err != nil {
			// Per-item failures are skipped, never fatal to the run.
			if !errors.Is(err, errSkipped) && !errors.Is(err, context.Canceled) {
				slog.Debug("enrich: item skipped", "id", item.ID, "error", err)
			}
			continue
		}
		e.emit(gen, onSummary, item.ID, sum.Short)
	}
}

func (e *Enricher) summarize(ctx context.Context, item model.FeedItem) (ai.Summary, error) {
	text, err := e.extractor.Text(ctx, item.URL)
	if err != nil {
		return ai.Summary{}, err
	}
	runes := []rune(text)
	if len(runes) < minTextRunes {
		return ai.Summary{}, errSkipped
	}
	if len(runes) > maxTextRunes {
		text = string(runes[:maxTextRunes])
	}

	sum, err := e.capability.Summarize(ctx, item.Title, text)
	if err != nil {
		return ai.Summary{}, err
	}
	e.cache.Set(ctx, summaryKey(item.ID), sum)
	return sum, nil
}

// emit delivers an update only while its run is still the latest one.
// The callback runs under the mutex Start also takes, so delivery and
// supersession cannot interleave: once Start returns, a superseded run
// can no longer be mid-callback.
func (e *Enricher) emit(gen uint64, onSummary OnSummary, id, summary string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen && onSummary != nil {
		onSummary(id, summary)
	}
}

func summaryKey(id string) string {
	return "summary_" + id
}
