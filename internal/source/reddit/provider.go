// Package reddit adapts the public reddit JSON listing API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/htmltext"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/source"
)

const (
	defaultBaseURL = "https://www.reddit.com"
	userAgent      = "pulse-feed-aggregator/1.0"

	listTTL   = 2 * time.Minute
	pageLimit = 25
)

// Provider implements source.Provider and source.CommentFetcher.
// Anonymous reddit access is aggressively rate limited, so all requests
// go through a shared pacing limiter; a 429 that still slips through is
// surfaced as a RateLimitError carrying the endpoint.
type Provider struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	limiter *rate.Limiter
}

// New creates a reddit provider. baseURL defaults to www.reddit.com;
// the cache is the short-lived session scope.
func New(baseURL string, c *cache.Cache) *Provider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   c,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

func (p *Provider) Platform() model.Platform { return model.PlatformReddit }

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string `json:"kind"`
			Data post   `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	SelftextHTML  string  `json:"selftext_html"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	Author        string  `json:"author"`
	CreatedUTC    float64 `json:"created_utc"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	Subreddit     string  `json:"subreddit"`
	Thumbnail     string  `json:"thumbnail"`
	IsSelf        bool    `json:"is_self"`
	LinkFlairText string  `json:"link_flair_text"`
	Preview       struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

// feedPage is the cached shape of one listing page. The next page's
// "after" cursor is persisted separately so page N+1 can resume.
type feedPage struct {
	Items   []model.FeedItem `json:"items"`
	HasMore bool             `json:"hasMore"`
	After   string           `json:"after,omitempty"`
}

// FetchFeed fetches one listing page. filter is "subreddit:sort"
// ("technology:hot"); sort defaults to hot. An empty subreddit yields
// an empty result rather than an error.
func (p *Provider) FetchFeed(ctx context.Context, filter string, page int) (model.FeedResult, error) {
	sub, sort := splitFilter(filter)
	if sub == "" {
		return model.FeedResult{HasMore: false}, nil
	}

	cacheKey := fmt.Sprintf("reddit_feed_%s_%s_%d", sub, sort, page)
	var cached feedPage
	if p.cache.Get(ctx, cacheKey, listTTL, &cached) {
		return model.FeedResult{Items: cached.Items, HasMore: cached.HasMore}, nil
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", pageLimit))
	params.Set("raw_json", "1")
	if page > 0 {
		var after string
		if p.cache.Get(ctx, afterKey(sub, sort, page), listTTL, &after) && after != "" {
			params.Set("after", after)
		}
	}
	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", p.baseURL, url.PathEscape(sub), url.PathEscape(sort), params.Encode())

	var lst listing
	if err := p.getJSON(ctx, endpoint, &lst); err != nil {
		return model.FeedResult{}, err
	}

	items := make([]model.FeedItem, 0, len(lst.Data.Children))
	for _, child := range lst.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		items = append(items, toFeedItem(child.Data))
	}

	pageData := feedPage{Items: items, HasMore: lst.Data.After != "", After: lst.Data.After}
	p.cache.Set(ctx, cacheKey, pageData)
	if lst.Data.After != "" {
		p.cache.Set(ctx, afterKey(sub, sort, page+1), lst.Data.After)
	}
	return model.FeedResult{Items: items, HasMore: pageData.HasMore, Cursor: lst.Data.After}, nil
}

// FetchComments loads the full comment tree for a post.
func (p *Provider) FetchComments(ctx context.Context, itemID string) ([]model.Comment, error) {
	id := strings.TrimPrefix(itemID, "reddit_")
	endpoint := fmt.Sprintf("%s/comments/%s.json?raw_json=1&limit=100", p.baseURL, url.PathEscape(id))

	// The comments endpoint returns a two-element array: the post
	// listing, then the comment listing.
	var pages []json.RawMessage
	if err := p.getJSON(ctx, endpoint, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, nil
	}
	var comments commentListing
	if err := json.Unmarshal(pages[1], &comments); err != nil {
		return nil, nil
	}
	return flattenComments(comments.Data.Children, 0), nil
}

type commentListing struct {
	Data struct {
		Children []commentNode `json:"children"`
	} `json:"data"`
}

type commentNode struct {
	Kind string `json:"kind"`
	Data struct {
		ID         string  `json:"id"`
		Author     string  `json:"author"`
		Body       string  `json:"body"`
		BodyHTML   string  `json:"body_html"`
		CreatedUTC float64 `json:"created_utc"`
		Score      int     `json:"score"`
		// Replies is "" for leaves and a listing object otherwise.
		Replies json.RawMessage `json:"replies"`
	} `json:"data"`
}

func flattenComments(children []commentNode, depth int) []model.Comment {
	out := make([]model.Comment, 0, len(children))
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}
		d := child.Data
		var replies []model.Comment
		if len(d.Replies) > 0 && d.Replies[0] == '{' {
			var sub commentListing
			if err := json.Unmarshal(d.Replies, &sub); err == nil {
				replies = flattenComments(sub.Data.Children, depth+1)
			}
		}
		body := d.Body
		if d.BodyHTML != "" {
			body = htmltext.Plain(d.BodyHTML)
		}
		out = append(out, model.Comment{
			ID:        "reddit_" + d.ID,
			Platform:  model.PlatformReddit,
			Author:    d.Author,
			Body:      body,
			Timestamp: int64(d.CreatedUTC * 1000),
			Score:     d.Score,
			Depth:     depth,
			Children:  replies,
		})
	}
	return out
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, dst any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return &source.RateLimitError{Endpoint: endpoint}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reddit: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func toFeedItem(d post) model.FeedItem {
	item := model.FeedItem{
		ID:           "reddit_" + d.ID,
		Platform:     model.PlatformReddit,
		Title:        d.Title,
		Author:       d.Author,
		Timestamp:    int64(d.CreatedUTC * 1000),
		Score:        d.Score,
		CommentCount: d.NumComments,
		Subreddit:    d.Subreddit,
		Thumbnail:    previewImage(d),
	}
	if d.IsSelf {
		item.Body = d.Selftext
		if item.Body == "" && d.SelftextHTML != "" {
			item.Body = htmltext.Plain(d.SelftextHTML)
		}
	} else {
		item.URL = d.URL
	}
	if d.LinkFlairText != "" {
		item.Tags = []string{d.LinkFlairText}
	}
	return item
}

func previewImage(d post) string {
	if len(d.Preview.Images) > 0 && d.Preview.Images[0].Source.URL != "" {
		return d.Preview.Images[0].Source.URL
	}
	switch d.Thumbnail {
	case "", "self", "default", "nsfw":
		return ""
	}
	return d.Thumbnail
}

func splitFilter(filter string) (sub, sort string) {
	sub, sort, _ = strings.Cut(strings.TrimSpace(filter), ":")
	sub = strings.TrimSpace(sub)
	sort = strings.TrimSpace(sort)
	if sort == "" {
		sort = "hot"
	}
	return sub, sort
}

func afterKey(sub, sort string, page int) string {
	return fmt.Sprintf("reddit_after_%s_%s_%d", sub, sort, page)
}
