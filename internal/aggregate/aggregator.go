// Package aggregate orchestrates per-tab and unified feed fetches
// across providers, isolating per-source failures and driving the
// background enrichment task.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/curation"
	"github.com/ben4mn/Pulse/internal/enrich"
	"github.com/ben4mn/Pulse/internal/mixer"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/source"
)

// TabUnified is the cross-platform ranked view.
const TabUnified = "pulse"

const defaultUnifiedFanout = 3

// ErrUnknownTab is returned for a tab no provider backs.
var ErrUnknownTab = errors.New("aggregate: unknown tab")

// Settings is the user's source configuration for each tab. Credentials
// live here because the orchestrator, not the provider, decides whether
// a platform can be queried at all.
type Settings struct {
	HNFilter         string
	Subreddits       []string
	RedditSort       string
	Substacks        []string
	TwitterAPIKey    string
	TwitterAccounts  []string
	ThreadsToken     string
	ThreadsKeywords  []string
	SummariesEnabled bool
	// UnifiedFanout caps parallel sub-queries per platform in the
	// unified view.
	UnifiedFanout int
}

// Aggregator drives providers for one user. Each fetch cycle gets an
// identity; results of a superseded cycle are not exposed to shared
// state and never start enrichment.
type Aggregator struct {
	providers  map[model.Platform]source.Provider
	session    *cache.Cache
	scorer     *curation.Scorer
	profiles   *curation.Store
	enricher   *enrich.Enricher // nil disables enrichment
	rateLimits *RateLimitNotifier
	state      *State

	mu       sync.Mutex
	settings Settings
	cycle    string
}

// Options wires an Aggregator. Providers, Session and RateLimits are
// required; Scorer/Profiles/Enricher may be nil to disable those paths.
type Options struct {
	Providers  map[model.Platform]source.Provider
	Session    *cache.Cache
	Scorer     *curation.Scorer
	Profiles   *curation.Store
	Enricher   *enrich.Enricher
	RateLimits *RateLimitNotifier
	Settings   Settings
}

func New(opts Options) *Aggregator {
	if opts.RateLimits == nil {
		opts.RateLimits = NewRateLimitNotifier()
	}
	if opts.Settings.UnifiedFanout <= 0 {
		opts.Settings.UnifiedFanout = defaultUnifiedFanout
	}
	return &Aggregator{
		providers:  opts.Providers,
		session:    opts.Session,
		scorer:     opts.Scorer,
		profiles:   opts.Profiles,
		enricher:   opts.Enricher,
		rateLimits: opts.RateLimits,
		state:      NewState(),
		settings:   opts.Settings,
	}
}

// Provider returns the adapter for a platform, if configured.
func (a *Aggregator) Provider(p model.Platform) (source.Provider, bool) {
	prov, ok := a.providers[p]
	return prov, ok
}

// RateLimits exposes the notifier for the HTTP surface.
func (a *Aggregator) RateLimits() *RateLimitNotifier { return a.rateLimits }

// State exposes the delivered-items snapshot.
func (a *Aggregator) State() *State { return a.state }

// Settings returns the current settings value.
func (a *Aggregator) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// SetSettings replaces the settings; callers then trigger a fresh fetch.
func (a *Aggregator) SetSettings(s Settings) {
	if s.UnifiedFanout <= 0 {
		s.UnifiedFanout = defaultUnifiedFanout
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = s
}

// FetchTab fetches one page for a tab. Single-source tabs propagate
// their provider's failure (a rate limit stays distinguishable);
// multi-query tabs contain each sub-query's failure and degrade.
func (a *Aggregator) FetchTab(ctx context.Context, tab string, page int) (model.FeedResult, error) {
	if tab == TabUnified {
		return a.FetchUnified(ctx)
	}

	cycle := a.beginCycle()
	settings := a.Settings()

	var (
		res model.FeedResult
		err error
	)
	switch model.Platform(tab) {
	case model.PlatformHN:
		res, err = a.singleSource(ctx, model.PlatformHN, settings.HNFilter, page)
	case model.PlatformSubstack:
		res, err = a.singleSource(ctx, model.PlatformSubstack, strings.Join(settings.Substacks, ","), page)
	case model.PlatformReddit:
		res, err = a.multiQuery(ctx, model.PlatformReddit, subredditFilters(settings.Subreddits, settings.RedditSort), page)
	case model.PlatformTwitter:
		if settings.TwitterAPIKey == "" || len(settings.TwitterAccounts) == 0 {
			// Missing credential pre-empts the call; not a failure.
			return model.FeedResult{HasMore: false}, nil
		}
		res, err = a.multiQuery(ctx, model.PlatformTwitter, credentialFilters(settings.TwitterAPIKey, settings.TwitterAccounts), page)
	case model.PlatformThreads:
		if settings.ThreadsToken == "" || len(settings.ThreadsKeywords) == 0 {
			return model.FeedResult{HasMore: false}, nil
		}
		res, err = a.multiQuery(ctx, model.PlatformThreads, credentialFilters(settings.ThreadsToken, settings.ThreadsKeywords), page)
	default:
		return model.FeedResult{}, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	if err != nil {
		return model.FeedResult{}, err
	}

	a.attachSummaries(ctx, res.Items)
	a.finishCycle(cycle, res.Items, page > 0)
	return res, nil
}

// FetchUnified builds the cross-platform view: first page of every
// enabled platform, fetched concurrently and independently; a failing
// platform contributes nothing. Pagination is disabled because "page 2"
// has no single composite meaning.
func (a *Aggregator) FetchUnified(ctx context.Context) (model.FeedResult, error) {
	cycle := a.beginCycle()
	settings := a.Settings()
	fanout := settings.UnifiedFanout

	type part struct {
		idx   int
		items []model.FeedItem
	}
	var (
		mu    sync.Mutex
		parts []part
	)
	collect := func(idx int, items []model.FeedItem) {
		if len(items) == 0 {
			return
		}
		mu.Lock()
		parts = append(parts, part{idx: idx, items: items})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := a.singleSource(gctx, model.PlatformHN, settings.HNFilter, 0)
		if err != nil {
			a.noteFailure(model.PlatformHN, err)
			return nil
		}
		collect(0, res.Items)
		return nil
	})
	if len(settings.Subreddits) > 0 {
		g.Go(func() error {
			res, err := a.multiQuery(gctx, model.PlatformReddit, capped(subredditFilters(settings.Subreddits, settings.RedditSort), fanout), 0)
			if err != nil {
				a.noteFailure(model.PlatformReddit, err)
				return nil
			}
			collect(1, res.Items)
			return nil
		})
	}
	if len(settings.Substacks) > 0 {
		g.Go(func() error {
			res, err := a.singleSource(gctx, model.PlatformSubstack, strings.Join(settings.Substacks, ","), 0)
			if err != nil {
				a.noteFailure(model.PlatformSubstack, err)
				return nil
			}
			collect(2, res.Items)
			return nil
		})
	}
	if settings.TwitterAPIKey != "" && len(settings.TwitterAccounts) > 0 {
		g.Go(func() error {
			res, err := a.multiQuery(gctx, model.PlatformTwitter, capped(credentialFilters(settings.TwitterAPIKey, settings.TwitterAccounts), fanout), 0)
			if err != nil {
				a.noteFailure(model.PlatformTwitter, err)
				return nil
			}
			collect(3, res.Items)
			return nil
		})
	}
	if settings.ThreadsToken != "" && len(settings.ThreadsKeywords) > 0 {
		g.Go(func() error {
			res, err := a.multiQuery(gctx, model.PlatformThreads, capped(credentialFilters(settings.ThreadsToken, settings.ThreadsKeywords), fanout), 0)
			if err != nil {
				a.noteFailure(model.PlatformThreads, err)
				return nil
			}
			collect(4, res.Items)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(parts, func(i, j int) bool { return parts[i].idx < parts[j].idx })
	feeds := make([][]model.FeedItem, 0, len(parts))
	for _, p := range parts {
		feeds = append(feeds, p.items)
	}

	a.attachRelevance(ctx, feeds)
	mixed := mixer.Mix(feeds...)

	a.attachSummaries(ctx, mixed)
	a.finishCycle(cycle, mixed, false)
	return model.FeedResult{Items: mixed, HasMore: false}, nil
}

// Refresh clears the short-lived cache scope and refetches page 0.
func (a *Aggregator) Refresh(ctx context.Context, tab string) (model.FeedResult, error) {
	a.session.Clear(ctx)
	return a.FetchTab(ctx, tab, 0)
}

// RecordInteraction folds a user interaction into the stored profile.
func (a *Aggregator) RecordInteraction(ctx context.Context, item model.FeedItem) {
	if a.profiles == nil {
		return
	}
	profile := a.profiles.Load(ctx)
	curation.RecordInteraction(profile, item)
	a.profiles.Save(ctx, profile)
}

func (a *Aggregator) singleSource(ctx context.Context, platform model.Platform, filter string, page int) (model.FeedResult, error) {
	prov, ok := a.providers[platform]
	if !ok {
		return model.FeedResult{}, fmt.Errorf("%w: %q", ErrUnknownTab, platform)
	}
	return prov.FetchFeed(ctx, filter, page)
}

// multiQuery fans several filters of one provider out concurrently and
// merges the survivors. A failing sub-query (rate limit included) is
// contained and contributes an empty result; a rate limit is still
// reported upward through the notifier. The combined page is re-sorted
// newest-first: this locally-scoped ordering is intentionally distinct
// from the mixer's ranked order.
func (a *Aggregator) multiQuery(ctx context.Context, platform model.Platform, filters []string, page int) (model.FeedResult, error) {
	prov, ok := a.providers[platform]
	if !ok {
		return model.FeedResult{}, fmt.Errorf("%w: %q", ErrUnknownTab, platform)
	}
	if len(filters) == 0 {
		return model.FeedResult{HasMore: false}, nil
	}

	results := make([]model.FeedResult, len(filters))
	g, gctx := errgroup.WithContext(ctx)
	for i, filter := range filters {
		i, filter := i, filter
		g.Go(func() error {
			res, err := prov.FetchFeed(gctx, filter, page)
			if err != nil {
				a.noteFailure(platform, err)
				return nil // contained: empty contribution
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var combined model.FeedResult
	for _, res := range results {
		combined.Items = append(combined.Items, res.Items...)
		combined.HasMore = combined.HasMore || res.HasMore
	}
	sort.SliceStable(combined.Items, func(i, j int) bool {
		return combined.Items[i].Timestamp > combined.Items[j].Timestamp
	})
	return combined, nil
}

// attachRelevance scores all items and writes AIScore in place, feeding
// the mixer's relevance term.
func (a *Aggregator) attachRelevance(ctx context.Context, feeds [][]model.FeedItem) {
	if a.scorer == nil {
		return
	}
	var flat []model.FeedItem
	for _, f := range feeds {
		flat = append(flat, f...)
	}
	var profile *curation.Profile
	if a.profiles != nil {
		profile = a.profiles.Load(ctx)
	}
	scores := a.scorer.Score(ctx, flat, profile)
	for _, feed := range feeds {
		for i := range feed {
			if v, ok := scores[feed[i].ID]; ok {
				score := v
				feed[i].AIScore = &score
			}
		}
	}
}

// attachSummaries fills Summary on fetched items from the long-lived
// summary record, so enrichment produced after an earlier response is
// visible to every later fetch of the same item.
func (a *Aggregator) attachSummaries(ctx context.Context, items []model.FeedItem) {
	if a.enricher == nil {
		return
	}
	for i := range items {
		if items[i].Summary != "" {
			continue
		}
		if s, ok := a.enricher.Known(ctx, items[i].ID); ok {
			items[i].Summary = s
		}
	}
}

// beginCycle supersedes the previous cycle: any in-flight enrichment is
// cancelled synchronously before the new cycle's fetch begins.
func (a *Aggregator) beginCycle() string {
	if a.enricher != nil {
		a.enricher.Cancel()
	}
	id := uuid.NewString()
	a.mu.Lock()
	a.cycle = id
	a.mu.Unlock()
	return id
}

// finishCycle publishes results and starts enrichment, unless a newer
// cycle has started in the meantime: stale completions are dropped on
// arrival and never touch shared state.
func (a *Aggregator) finishCycle(cycle string, items []model.FeedItem, appendPage bool) {
	a.mu.Lock()
	current := a.cycle == cycle
	settings := a.settings
	a.mu.Unlock()
	if !current {
		slog.Debug("aggregate: dropping stale cycle", "cycle", cycle)
		return
	}

	if appendPage {
		a.state.Append(items)
	} else {
		a.state.Set(items)
	}

	if settings.SummariesEnabled && a.enricher != nil {
		a.enricher.Start(a.state.Items(), a.state.UpdateSummary)
	}
}

func (a *Aggregator) noteFailure(platform model.Platform, err error) {
	if rl, ok := source.AsRateLimit(err); ok {
		a.rateLimits.Notify(rl.Endpoint)
		slog.Warn("aggregate: rate limited", "platform", platform, "endpoint", rl.Endpoint)
		return
	}
	slog.Warn("aggregate: source failed", "platform", platform, "error", err)
}

func subredditFilters(subs []string, sort string) []string {
	if sort == "" {
		sort = "hot"
	}
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		sub = strings.TrimSpace(sub)
		if sub != "" {
			out = append(out, sub+":"+sort)
		}
	}
	return out
}

func credentialFilters(credential string, facets []string) []string {
	out := make([]string, 0, len(facets))
	for _, f := range facets {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, credential+":"+f)
		}
	}
	return out
}

func capped(filters []string, n int) []string {
	if n > 0 && len(filters) > n {
		return filters[:n]
	}
	return filters
}
