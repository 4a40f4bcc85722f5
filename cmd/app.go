package cmd

import (
	"github.com/redis/go-redis/v9"

	"github.com/ben4mn/Pulse/internal/aggregate"
	"github.com/ben4mn/Pulse/internal/ai"
	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/config"
	"github.com/ben4mn/Pulse/internal/curation"
	"github.com/ben4mn/Pulse/internal/enrich"
	"github.com/ben4mn/Pulse/internal/extract"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/redisclient"
	"github.com/ben4mn/Pulse/internal/source"
	"github.com/ben4mn/Pulse/internal/source/hackernews"
	"github.com/ben4mn/Pulse/internal/source/reddit"
	"github.com/ben4mn/Pulse/internal/source/substack"
	"github.com/ben4mn/Pulse/internal/source/threads"
	"github.com/ben4mn/Pulse/internal/source/twitter"
)

// app bundles the wired pipeline for the serve and fetch commands.
type app struct {
	Aggregator *aggregate.Aggregator
	Articles   *extract.ArticleService
	Profiles   *curation.Store
	Persistent *cache.Cache
	rdb        *redis.Client // nil when the persistent scope is in memory
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// buildApp wires caches, providers, scoring and enrichment from config.
// The session scope is always in memory; the persistent scope uses
// Redis when an address is configured.
func buildApp(cfg config.Config) *app {
	session := cache.New(cache.NewMemoryStore(cfg.Feed.CacheCapacity))

	var rdb *redis.Client
	var persistent *cache.Cache
	if cfg.Redis.Addr != "" {
		rdb = redisclient.New(cfg.Redis)
		persistent = cache.New(cache.NewRedisStore(rdb, "pulse:"))
	} else {
		persistent = cache.New(cache.NewMemoryStore(cfg.Feed.CacheCapacity))
	}

	providers := map[model.Platform]source.Provider{
		model.PlatformHN:       hackernews.New("", session),
		model.PlatformReddit:   reddit.New("", session),
		model.PlatformSubstack: substack.New(session),
		model.PlatformTwitter:  twitter.New("", session),
		model.PlatformThreads:  threads.New("", session),
	}

	var capability ai.Capability
	if cfg.OpenAI.APIKey != "" {
		capability = ai.NewOpenAI(ai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}

	var extractor extract.Extractor
	if cfg.Reader.Endpoint != "" {
		extractor = extract.NewReader(cfg.Reader.Endpoint)
	} else {
		extractor = extract.NewReadability()
	}

	profiles := curation.NewStore(persistent)
	scorer := curation.NewScorer(capability, persistent)

	var enricher *enrich.Enricher
	if capability != nil && cfg.Feed.SummariesEnabled {
		enricher = enrich.New(capability, extractor, persistent)
	}

	agg := aggregate.New(aggregate.Options{
		Providers: providers,
		Session:   session,
		Scorer:    scorer,
		Profiles:  profiles,
		Enricher:  enricher,
		Settings: aggregate.Settings{
			HNFilter:         cfg.Sources.HN.Filter,
			Subreddits:       cfg.Sources.Reddit.Subreddits,
			RedditSort:       cfg.Sources.Reddit.Sort,
			Substacks:        cfg.Sources.Substack.Publications,
			TwitterAPIKey:    cfg.Sources.Twitter.APIKey,
			TwitterAccounts:  cfg.Sources.Twitter.Queries,
			ThreadsToken:     cfg.Sources.Threads.AccessToken,
			ThreadsKeywords:  cfg.Sources.Threads.Keywords,
			SummariesEnabled: cfg.Feed.SummariesEnabled,
			UnifiedFanout:    cfg.Feed.UnifiedFanout,
		},
	})

	return &app{
		Aggregator: agg,
		Articles:   extract.NewArticleService(extractor, session),
		Profiles:   profiles,
		Persistent: persistent,
		rdb:        rdb,
	}
}
