package aggregate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ben4mn/Pulse/internal/ai"
	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/enrich"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/source"
)

// stubProvider answers FetchFeed per filter and records the calls.
type stubProvider struct {
	platform model.Platform

	mu      sync.Mutex
	calls   []string
	results map[string]model.FeedResult
	errs    map[string]error
}

func newStub(p model.Platform) *stubProvider {
	return &stubProvider{
		platform: p,
		results:  map[string]model.FeedResult{},
		errs:     map[string]error{},
	}
}

func (s *stubProvider) Platform() model.Platform { return s.platform }

func (s *stubProvider) FetchFeed(_ context.Context, filter string, _ int) (model.FeedResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, filter)
	s.mu.Unlock()
	if err, ok := s.errs[filter]; ok {
		return model.FeedResult{}, err
	}
	return s.results[filter], nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubProvider) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func feedItem(id string, p model.Platform, ts int64) model.FeedItem {
	return model.FeedItem{ID: id, Platform: p, Title: "t " + id, URL: "https://example.com/" + id, Timestamp: ts}
}

func newTestAggregator(settings Settings, provs ...*stubProvider) (*Aggregator, map[model.Platform]*stubProvider) {
	byPlatform := map[model.Platform]*stubProvider{}
	providers := map[model.Platform]source.Provider{}
	for _, p := range provs {
		byPlatform[p.platform] = p
		providers[p.platform] = p
	}
	agg := New(Options{
		Providers: providers,
		Session:   cache.New(cache.NewMemoryStore(0)),
		Settings:  settings,
	})
	return agg, byPlatform
}

func TestFetchTabSingleSourcePropagatesError(t *testing.T) {
	hn := newStub(model.PlatformHN)
	hn.errs["top"] = errors.New("firebase down")
	agg, _ := newTestAggregator(Settings{HNFilter: "top"}, hn)

	_, err := agg.FetchTab(context.Background(), "hn", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firebase down")
}

func TestFetchTabUnknown(t *testing.T) {
	agg, _ := newTestAggregator(Settings{})
	_, err := agg.FetchTab(context.Background(), "myspace", 0)
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestFetchTabRedditMergesSubredditsNewestFirst(t *testing.T) {
	reddit := newStub(model.PlatformReddit)
	reddit.results["golang:hot"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("reddit_a", model.PlatformReddit, 100),
	}}
	reddit.results["rust:hot"] = model.FeedResult{
		Items:   []model.FeedItem{feedItem("reddit_b", model.PlatformReddit, 300)},
		HasMore: true,
	}
	agg, _ := newTestAggregator(Settings{Subreddits: []string{"golang", "rust"}}, reddit)

	res, err := agg.FetchTab(context.Background(), "reddit", 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "reddit_b", res.Items[0].ID, "merged page is timestamp-sorted")
	assert.True(t, res.HasMore, "any sub-query with more pages keeps paging on")
}

func TestFetchTabRedditContainsSubQueryFailure(t *testing.T) {
	reddit := newStub(model.PlatformReddit)
	reddit.results["golang:hot"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("reddit_a", model.PlatformReddit, 100),
	}}
	reddit.errs["rust:hot"] = &source.RateLimitError{Endpoint: "/r/rust/hot.json"}
	agg, _ := newTestAggregator(Settings{Subreddits: []string{"golang", "rust"}}, reddit)

	res, err := agg.FetchTab(context.Background(), "reddit", 0)
	require.NoError(t, err, "sub-query failures are contained")
	require.Len(t, res.Items, 1)

	// The rate limit is still surfaced through the notifier.
	assert.True(t, agg.RateLimits().Active())
	hits := agg.RateLimits().Hits()
	require.Len(t, hits, 1)
	assert.Equal(t, "/r/rust/hot.json", hits[0].Endpoint)
}

func TestFetchTabTwitterWithoutCredentialIsEmpty(t *testing.T) {
	tw := newStub(model.PlatformTwitter)
	agg, _ := newTestAggregator(Settings{TwitterAccounts: []string{"jack"}}, tw)

	res, err := agg.FetchTab(context.Background(), "twitter", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.False(t, res.HasMore)
	assert.Equal(t, 0, tw.callCount(), "missing credential pre-empts the call")
}

func TestFetchTabTwitterBuildsCredentialFilters(t *testing.T) {
	tw := newStub(model.PlatformTwitter)
	tw.results["key:jack"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("twitter_1", model.PlatformTwitter, 100),
	}}
	agg, _ := newTestAggregator(Settings{TwitterAPIKey: "key", TwitterAccounts: []string{"jack", "jill"}}, tw)

	_, err := agg.FetchTab(context.Background(), "twitter", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"key:jack", "key:jill"}, tw.called())
}

func TestFetchTabPublishesState(t *testing.T) {
	hn := newStub(model.PlatformHN)
	hn.results["top"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("hn_1", model.PlatformHN, 100),
	}}
	agg, _ := newTestAggregator(Settings{HNFilter: "top"}, hn)

	_, err := agg.FetchTab(context.Background(), "hn", 0)
	require.NoError(t, err)
	got := agg.State().Items()
	require.Len(t, got, 1)
	assert.Equal(t, "hn_1", got[0].ID)
}

func TestFetchTabSecondPageAppendsState(t *testing.T) {
	hn := newStub(model.PlatformHN)
	hn.results["top"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("hn_1", model.PlatformHN, 100),
	}}
	agg, _ := newTestAggregator(Settings{HNFilter: "top"}, hn)

	_, err := agg.FetchTab(context.Background(), "hn", 0)
	require.NoError(t, err)
	_, err = agg.FetchTab(context.Background(), "hn", 1)
	require.NoError(t, err)
	assert.Len(t, agg.State().Items(), 2)
}

type stubExtractor struct{ text string }

func (s *stubExtractor) Text(_ context.Context, _ string) (string, error) { return s.text, nil }

type stubCapability struct{}

func (stubCapability) ScoreItems(_ context.Context, _ []string, _ []string) ([]float64, error) {
	return nil, errors.New("not implemented")
}

func (stubCapability) Summarize(_ context.Context, title, _ string) (ai.Summary, error) {
	return ai.Summary{Short: "tl;dr " + title}, nil
}

func TestRefetchCarriesEarlierSummaries(t *testing.T) {
	hn := newStub(model.PlatformHN)
	hn.results["top"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("hn_1", model.PlatformHN, 100),
	}}
	enricher := enrich.New(stubCapability{}, &stubExtractor{text: strings.Repeat("word ", 100)}, cache.New(cache.NewMemoryStore(0)))
	agg := New(Options{
		Providers: map[model.Platform]source.Provider{model.PlatformHN: hn},
		Session:   cache.New(cache.NewMemoryStore(0)),
		Enricher:  enricher,
		Settings:  Settings{HNFilter: "top", SummariesEnabled: true},
	})

	first, err := agg.FetchTab(context.Background(), "hn", 0)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Empty(t, first.Items[0].Summary, "summaries arrive after the response")

	select {
	case <-enricher.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("enrichment did not finish")
	}

	second, err := agg.FetchTab(context.Background(), "hn", 0)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "tl;dr t hn_1", second.Items[0].Summary)
}

func TestFetchUnifiedSkipsFailingPlatform(t *testing.T) {
	hn := newStub(model.PlatformHN)
	hn.errs["top"] = errors.New("down")
	reddit := newStub(model.PlatformReddit)
	reddit.results["golang:hot"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("reddit_a", model.PlatformReddit, 100),
	}}
	agg, _ := newTestAggregator(Settings{HNFilter: "top", Subreddits: []string{"golang"}}, hn, reddit)

	res, err := agg.FetchUnified(context.Background())
	require.NoError(t, err, "a failing platform never fails the unified view")
	require.Len(t, res.Items, 1)
	assert.Equal(t, "reddit_a", res.Items[0].ID)
	assert.False(t, res.HasMore, "unified view does not paginate")
}

func TestFetchUnifiedDeduplicatesAcrossPlatforms(t *testing.T) {
	now := int64(1700000000000)
	hn := newStub(model.PlatformHN)
	hnItem := feedItem("hn_1", model.PlatformHN, now)
	hnItem.URL = "https://example.com/shared"
	hn.results["top"] = model.FeedResult{Items: []model.FeedItem{hnItem}}

	reddit := newStub(model.PlatformReddit)
	dup := feedItem("reddit_a", model.PlatformReddit, now)
	dup.URL = "https://example.com/shared"
	reddit.results["golang:hot"] = model.FeedResult{Items: []model.FeedItem{dup}}

	agg, _ := newTestAggregator(Settings{HNFilter: "top", Subreddits: []string{"golang"}}, hn, reddit)
	res, err := agg.FetchUnified(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "hn_1", res.Items[0].ID, "platform order breaks URL ties")
}

func TestFetchUnifiedCapsFanout(t *testing.T) {
	reddit := newStub(model.PlatformReddit)
	agg, _ := newTestAggregator(Settings{
		HNFilter:      "top",
		Subreddits:    []string{"a", "b", "c", "d", "e"},
		UnifiedFanout: 2,
	}, newStub(model.PlatformHN), reddit)

	_, err := agg.FetchUnified(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reddit.callCount(), "unified fanout caps sub-queries per platform")
}

func TestFetchTabUncapsFanout(t *testing.T) {
	reddit := newStub(model.PlatformReddit)
	agg, _ := newTestAggregator(Settings{
		Subreddits:    []string{"a", "b", "c", "d", "e"},
		UnifiedFanout: 2,
	}, reddit)

	_, err := agg.FetchTab(context.Background(), "reddit", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, reddit.callCount(), "the dedicated tab queries every subreddit")
}

func TestRefreshClearsSessionCache(t *testing.T) {
	hn := newStub(model.PlatformHN)
	hn.results["top"] = model.FeedResult{Items: []model.FeedItem{
		feedItem("hn_1", model.PlatformHN, 100),
	}}
	agg, _ := newTestAggregator(Settings{HNFilter: "top"}, hn)

	ctx := context.Background()
	agg.session.Set(ctx, "somekey", "cached")
	res, err := agg.Refresh(ctx, "hn")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	var v string
	assert.False(t, agg.session.Get(ctx, "somekey", 1<<40, &v), "refresh drops the session scope")
}

func TestSetSettingsDefaultsFanout(t *testing.T) {
	agg, _ := newTestAggregator(Settings{})
	agg.SetSettings(Settings{HNFilter: "best"})
	got := agg.Settings()
	assert.Equal(t, "best", got.HNFilter)
	assert.Equal(t, defaultUnifiedFanout, got.UnifiedFanout)
}

func TestCredentialFilterHelpers(t *testing.T) {
	assert.Equal(t, []string{"k:a", "k:b"}, credentialFilters("k", []string{"a", " b ", ""}))
	assert.Equal(t, []string{"x:new", "y:new"}, subredditFilters([]string{"x", "y"}, "new"))
	assert.Equal(t, []string{"x:hot"}, subredditFilters([]string{" x "}, ""))
	assert.Equal(t, []string{"a", "b"}, capped([]string{"a", "b", "c"}, 2))
	assert.Equal(t, []string{"a"}, capped([]string{"a"}, 3))
}

func TestNotifierDismissKeepsHistory(t *testing.T) {
	n := NewRateLimitNotifier()
	n.Notify("/r/golang/hot.json")
	n.Notify("/r/rust/hot.json")
	require.True(t, n.Active())
	require.Len(t, n.Hits(), 2)

	n.Dismiss()
	assert.False(t, n.Active())
	assert.Len(t, n.Hits(), 2, "dismiss clears the flag, not the history")

	n.Notify("/again")
	assert.True(t, n.Active())
}

func TestStateUpdateSummary(t *testing.T) {
	s := NewState()
	s.Set([]model.FeedItem{{ID: "a"}, {ID: "b"}})

	before := s.Items()
	s.UpdateSummary("b", "two lines about b")
	s.UpdateSummary("ghost", "never lands")

	after := s.Items()
	assert.Equal(t, "two lines about b", after[1].Summary)
	assert.Empty(t, before[1].Summary, "earlier snapshots are immutable")
	assert.Len(t, after, 2)
}

func TestStateAppendAndReset(t *testing.T) {
	s := NewState()
	s.Set([]model.FeedItem{{ID: "a"}})
	s.Append([]model.FeedItem{{ID: "b"}})
	assert.Len(t, s.Items(), 2)

	s.Reset()
	assert.Empty(t, s.Items())
}
