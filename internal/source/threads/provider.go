// Package threads adapts the Threads keyword search Graph API.
package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/source"
)

const (
	defaultBaseURL = "https://graph.threads.net/v1.0"

	listTTL      = 5 * time.Minute
	searchFields = "id,text,timestamp,username,media_url,like_count,permalink"
)

// Provider implements source.Provider. Keyword search has no paging, so
// every fetch is single-shot with HasMore=false.
type Provider struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
}

// New creates a threads provider. baseURL defaults to the public Graph
// API; the cache is the short-lived session scope.
func New(baseURL string, c *cache.Cache) *Provider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   c,
	}
}

func (p *Provider) Platform() model.Platform { return model.PlatformThreads }

type threadsPost struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Timestamp    string `json:"timestamp"`
	Username     string `json:"username"`
	MediaURL     string `json:"media_url"`
	LikeCount    int    `json:"like_count"`
	RepliesCount int    `json:"replies_count"`
	Permalink    string `json:"permalink"`
}

// FetchFeed searches posts for one keyword. filter is "token:keyword";
// a missing token or keyword yields an empty result. Failures other
// than a rate limit degrade to an empty page.
func (p *Provider) FetchFeed(ctx context.Context, filter string, _ int) (model.FeedResult, error) {
	token, keyword, _ := strings.Cut(filter, ":")
	if token == "" || keyword == "" {
		return model.FeedResult{HasMore: false}, nil
	}

	cacheKey := "threads_" + keyword
	var items []model.FeedItem
	if p.cache.Get(ctx, cacheKey, listTTL, &items) {
		return model.FeedResult{Items: items, HasMore: false}, nil
	}

	params := url.Values{}
	params.Set("q", keyword)
	params.Set("fields", searchFields)
	params.Set("access_token", token)
	endpoint := fmt.Sprintf("%s/threads/search?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.FeedResult{HasMore: false}, nil
	}
	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("threads: request failed", "keyword", keyword, "error", err)
		return model.FeedResult{HasMore: false}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return model.FeedResult{}, &source.RateLimitError{Endpoint: p.baseURL + "/threads/search"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("threads: status", "keyword", keyword, "status", resp.StatusCode)
		return model.FeedResult{HasMore: false}, nil
	}

	var body struct {
		Data []threadsPost `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.FeedResult{HasMore: false}, nil
	}

	items = make([]model.FeedItem, 0, len(body.Data))
	for _, post := range body.Data {
		items = append(items, toFeedItem(post))
	}
	p.cache.Set(ctx, cacheKey, items)

	return model.FeedResult{Items: items, HasMore: false}, nil
}

func toFeedItem(post threadsPost) model.FeedItem {
	link := post.Permalink
	if link == "" {
		link = fmt.Sprintf("https://www.threads.net/@%s/post/%s", post.Username, post.ID)
	}
	var ts int64
	if t, err := time.Parse(time.RFC3339, post.Timestamp); err == nil {
		ts = t.UnixMilli()
	} else if t, err := time.Parse("2006-01-02T15:04:05-0700", post.Timestamp); err == nil {
		// Graph API style offset without a colon.
		ts = t.UnixMilli()
	}
	return model.FeedItem{
		ID:           "threads_" + post.ID,
		Platform:     model.PlatformThreads,
		Body:         post.Text,
		URL:          link,
		Author:       post.Username,
		Timestamp:    ts,
		Score:        post.LikeCount,
		CommentCount: post.RepliesCount,
		Thumbnail:    post.MediaURL,
	}
}
