// Package twitter adapts the twitterapi.io advanced search endpoint.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/source"
)

const (
	defaultEndpoint = "https://api.twitterapi.io/twitter/tweet/advanced_search"

	listTTL = 2 * time.Minute
	// The API serves ~20 tweets per page; a full page implies more.
	fullPage = 20
)

// Provider implements source.Provider. The API key travels inside the
// filter ("apiKey:account") because the orchestrator owns credentials.
type Provider struct {
	endpoint string
	client   *http.Client
	cache    *cache.Cache
}

// New creates a twitter provider. endpoint defaults to twitterapi.io;
// the cache is the short-lived session scope.
func New(endpoint string, c *cache.Cache) *Provider {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultEndpoint
	}
	return &Provider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		cache:    c,
	}
}

func (p *Provider) Platform() model.Platform { return model.PlatformTwitter }

type tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Author    struct {
		UserName string `json:"userName"`
		Name     string `json:"name"`
	} `json:"author"`
	LikeCount    int `json:"likeCount"`
	ReplyCount   int `json:"replyCount"`
	RetweetCount int `json:"retweetCount"`
	Media        []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"media"`
}

type searchResponse struct {
	Tweets     []tweet `json:"tweets"`
	NextCursor string  `json:"next_cursor"`
}

// FetchFeed returns the latest tweets of one account. filter is
// "apiKey:account"; a missing key or account yields an empty result.
// Upstream failures other than a rate limit degrade to an empty page,
// matching the advisory role of this source.
func (p *Provider) FetchFeed(ctx context.Context, filter string, page int) (model.FeedResult, error) {
	apiKey, query, _ := strings.Cut(filter, ":")
	if apiKey == "" || query == "" {
		return model.FeedResult{HasMore: false}, nil
	}

	cacheKey := fmt.Sprintf("twitter_%s_%d", query, page)
	var items []model.FeedItem
	if p.cache.Get(ctx, cacheKey, listTTL, &items) {
		return model.FeedResult{Items: items, HasMore: len(items) >= fullPage}, nil
	}

	body := map[string]any{
		"query":     "from:" + query,
		"queryType": "Latest",
	}
	if page > 0 {
		var cursor string
		if p.cache.Get(ctx, cursorKey(query, page), listTTL, &cursor) && cursor != "" {
			body["cursor"] = cursor
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return model.FeedResult{HasMore: false}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.FeedResult{HasMore: false}, nil
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("twitter: request failed", "account", query, "error", err)
		return model.FeedResult{HasMore: false}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return model.FeedResult{}, &source.RateLimitError{Endpoint: p.endpoint}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("twitter: status", "account", query, "status", resp.StatusCode)
		return model.FeedResult{HasMore: false}, nil
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return model.FeedResult{HasMore: false}, nil
	}

	items = make([]model.FeedItem, 0, len(sr.Tweets))
	for _, t := range sr.Tweets {
		items = append(items, toFeedItem(t))
	}
	if sr.NextCursor != "" {
		p.cache.Set(ctx, cursorKey(query, page+1), sr.NextCursor)
	}
	p.cache.Set(ctx, cacheKey, items)

	return model.FeedResult{Items: items, HasMore: len(items) >= fullPage, Cursor: sr.NextCursor}, nil
}

func toFeedItem(t tweet) model.FeedItem {
	item := model.FeedItem{
		ID:           "twitter_" + t.ID,
		Platform:     model.PlatformTwitter,
		Body:         t.Text,
		URL:          fmt.Sprintf("https://x.com/%s/status/%s", t.Author.UserName, t.ID),
		Author:       t.Author.UserName,
		Timestamp:    parseCreatedAt(t.CreatedAt),
		Score:        t.LikeCount + t.RetweetCount,
		CommentCount: t.ReplyCount,
	}
	if len(t.Media) > 0 {
		item.Thumbnail = t.Media[0].URL
	}
	return item
}

// parseCreatedAt handles the classic twitter timestamp format with an
// RFC3339 fallback; unparseable input yields 0 rather than an error.
func parseCreatedAt(s string) int64 {
	if ts, err := time.Parse(time.RubyDate, s); err == nil {
		return ts.UnixMilli()
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UnixMilli()
	}
	return 0
}

func cursorKey(query string, page int) string {
	return fmt.Sprintf("twitter_cursor_%s_%d", query, page)
}
