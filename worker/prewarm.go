package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ben4mn/Pulse/internal/aggregate"
)

// Prewarmer periodically fetches the configured tabs so the session
// cache is warm before anyone asks for a feed page.
type Prewarmer struct {
	Agg      *aggregate.Aggregator
	Tabs     []string
	Interval time.Duration
}

func (w *Prewarmer) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 10 * time.Minute
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	// initial run
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Prewarmer) runOnce(ctx context.Context) {
	for _, tab := range w.Tabs {
		res, err := w.Agg.FetchTab(ctx, tab, 0)
		if err != nil {
			slog.Error("prewarm fetch failed.", "tab", tab, "error", err)
			continue
		}
		slog.Info("prewarmed tab.", "tab", tab, "items", len(res.Items))
	}
}
