// Package substack aggregates the RSS feeds of configured publications.
package substack

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/htmltext"
	"github.com/ben4mn/Pulse/internal/model"
)

const (
	listTTL     = 5 * time.Minute
	bodyPreview = 200
)

// Provider implements source.Provider. Substack has no paging API, so
// the whole multi-feed fetch is single-shot: HasMore is always false.
type Provider struct {
	parser *gofeed.Parser
	cache  *cache.Cache
}

// New creates a substack provider over the short-lived session cache.
func New(c *cache.Cache) *Provider {
	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: 10 * time.Second}
	return &Provider{parser: fp, cache: c}
}

func (p *Provider) Platform() model.Platform { return model.PlatformSubstack }

// FetchFeed fetches every configured publication and merges the posts
// newest-first. filter is a comma-separated list of slugs, hostnames or
// full feed base URLs. A publication that fails to fetch or parse is
// skipped; the rest still combine.
func (p *Provider) FetchFeed(ctx context.Context, filter string, _ int) (model.FeedResult, error) {
	pubs := splitPublications(filter)
	if len(pubs) == 0 {
		return model.FeedResult{HasMore: false}, nil
	}

	var all []model.FeedItem
	for _, pub := range pubs {
		feedURL := resolveFeedURL(pub)
		cacheKey := "substack_" + pub

		var items []model.FeedItem
		if !p.cache.Get(ctx, cacheKey, listTTL, &items) {
			feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
			if err != nil {
				slog.Warn("substack: feed fetch failed", "publication", pub, "error", err)
				continue
			}
			items = make([]model.FeedItem, 0, len(feed.Items))
			for _, it := range feed.Items {
				items = append(items, toFeedItem(it, feedURL))
			}
			p.cache.Set(ctx, cacheKey, items)
		}
		all = append(all, items...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	return model.FeedResult{Items: all, HasMore: false}, nil
}

func toFeedItem(it *gofeed.Item, feedURL string) model.FeedItem {
	publication := extractPublication(feedURL)

	author := publication
	if len(it.Authors) > 0 && it.Authors[0] != nil && it.Authors[0].Name != "" {
		author = it.Authors[0].Name
	}

	var ts int64
	if it.PublishedParsed != nil {
		ts = it.PublishedParsed.UnixMilli()
	} else if it.UpdatedParsed != nil {
		ts = it.UpdatedParsed.UnixMilli()
	}

	body := htmltext.Plain(it.Description)
	if len([]rune(body)) > bodyPreview {
		body = string([]rune(body)[:bodyPreview])
	}

	return model.FeedItem{
		ID:          "substack_" + linkDigest(it.Link),
		Platform:    model.PlatformSubstack,
		Title:       it.Title,
		Body:        body,
		URL:         it.Link,
		Author:      author,
		Timestamp:   ts,
		Publication: publication,
	}
}

// linkDigest derives a stable id fragment from the post URL.
func linkDigest(link string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(link))
	if len(enc) > 32 {
		enc = enc[:32]
	}
	return enc
}

func extractPublication(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := u.Hostname()
	host = strings.TrimSuffix(host, ".substack.com")
	host = strings.TrimPrefix(host, "www.")
	return host
}

func resolveFeedURL(pub string) string {
	switch {
	case strings.Contains(pub, "://"):
		return strings.TrimRight(pub, "/") + "/feed"
	case strings.Contains(pub, "."):
		return fmt.Sprintf("https://%s/feed", pub)
	default:
		return fmt.Sprintf("https://%s.substack.com/feed", pub)
	}
}

func splitPublications(filter string) []string {
	parts := strings.Split(filter, ",")
	pubs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			pubs = append(pubs, p)
		}
	}
	return pubs
}
