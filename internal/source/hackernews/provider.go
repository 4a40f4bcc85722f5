// Package hackernews adapts the Hacker News Firebase API.
// Docs: https://github.com/HackerNews/API
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/htmltext"
	"github.com/ben4mn/Pulse/internal/model"
)

const (
	defaultBaseAPI = "https://hacker-news.firebaseio.com/v0"

	pageSize      = 30
	maxConcurrent = 15
	listTTL       = 2 * time.Minute
	itemTTL       = 5 * time.Minute

	maxCommentDepth = 3
)

// Provider implements source.Provider and source.CommentFetcher for HN.
// The item API is flat (one request per item), so feed pages and comment
// trees both fan out through fetchBatch with bounded concurrency.
type Provider struct {
	baseAPI string
	client  *http.Client
	cache   *cache.Cache
}

// New creates an HN provider. baseAPI defaults to the public v0 endpoint.
// The cache is the short-lived session scope.
func New(baseAPI string, c *cache.Cache) *Provider {
	if strings.TrimSpace(baseAPI) == "" {
		baseAPI = defaultBaseAPI
	}
	return &Provider{
		baseAPI: strings.TrimRight(baseAPI, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   c,
	}
}

func (p *Provider) Platform() model.Platform { return model.PlatformHN }

// hnItem mirrors the subset of HN item fields we care about.
type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"` // story, comment, job, poll, ...
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Kids        []int  `json:"kids"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

// FetchFeed returns one 30-item page of a story list. filter names the
// list (top/new/best/ask/show/job); anything unknown falls back to top.
func (p *Provider) FetchFeed(ctx context.Context, filter string, page int) (model.FeedResult, error) {
	list := normalizeList(filter)
	if page < 0 {
		page = 0
	}

	cacheKey := fmt.Sprintf("hn_%s_list", list)
	var ids []int
	if !p.cache.Get(ctx, cacheKey, listTTL, &ids) {
		var err error
		ids, err = p.fetchIDs(ctx, list)
		if err != nil {
			return model.FeedResult{}, err
		}
		p.cache.Set(ctx, cacheKey, ids)
	}

	start := page * pageSize
	if start >= len(ids) {
		return model.FeedResult{HasMore: false}, nil
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}

	raw := p.fetchBatch(ctx, ids[start:end])
	items := make([]model.FeedItem, 0, len(raw))
	for _, it := range raw {
		items = append(items, toFeedItem(it))
	}
	return model.FeedResult{
		Items:   items,
		HasMore: start+pageSize < len(ids),
	}, nil
}

// FetchComments builds the comment tree under an item, at most
// maxCommentDepth levels deep to bound the N+1 child fetch fan-out.
func (p *Provider) FetchComments(ctx context.Context, itemID string) ([]model.Comment, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(itemID, "hn_"))
	if err != nil {
		return nil, fmt.Errorf("hackernews: bad item id %q", itemID)
	}
	return p.fetchCommentTree(ctx, id, 0)
}

func (p *Provider) fetchCommentTree(ctx context.Context, parentID, depth int) ([]model.Comment, error) {
	parent, err := p.fetchItem(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if len(parent.Kids) == 0 {
		return nil, nil
	}

	children := p.fetchBatch(ctx, parent.Kids)
	comments := make([]model.Comment, 0, len(children))
	for _, child := range children {
		if child.Type != "comment" {
			continue
		}
		var replies []model.Comment
		if depth < maxCommentDepth && len(child.Kids) > 0 {
			// A failed subtree drops silently; siblings survive.
			replies, _ = p.fetchCommentTree(ctx, child.ID, depth+1)
		}
		comments = append(comments, model.Comment{
			ID:        fmt.Sprintf("hn_%d", child.ID),
			Platform:  model.PlatformHN,
			Author:    authorOrDeleted(child.By),
			Body:      htmltext.Plain(child.Text),
			Timestamp: child.Time * 1000,
			Score:     child.Score,
			Depth:     depth,
			Children:  replies,
		})
	}
	return comments, nil
}

func (p *Provider) fetchIDs(ctx context.Context, list string) ([]int, error) {
	endpoint := fmt.Sprintf("%s/%sstories.json", p.baseAPI, url.PathEscape(list))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hackernews: %s status %d", list, resp.StatusCode)
	}
	var ids []int
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *Provider) fetchItem(ctx context.Context, id int) (hnItem, error) {
	var zero hnItem
	cacheKey := fmt.Sprintf("hn_item_%d", id)
	var cached hnItem
	if p.cache.Get(ctx, cacheKey, itemTTL, &cached) {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/item/%d.json", p.baseAPI, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, fmt.Errorf("hackernews: item %d status %d", id, resp.StatusCode)
	}
	var it hnItem
	if err := json.NewDecoder(resp.Body).Decode(&it); err != nil {
		return zero, err
	}
	p.cache.Set(ctx, cacheKey, it)
	return it, nil
}

// fetchBatch resolves ids concurrently (at most maxConcurrent in
// flight), drops failed/dead/deleted items, and preserves the source
// id order regardless of completion order.
func (p *Provider) fetchBatch(ctx context.Context, ids []int) []hnItem {
	if len(ids) == 0 {
		return nil
	}
	type result struct {
		idx  int
		item hnItem
		ok   bool
	}
	sem := make(chan struct{}, maxConcurrent)
	done := make(chan result, len(ids))
	for i, id := range ids {
		sem <- struct{}{}
		go func(i, id int) {
			defer func() { <-sem }()
			ictx, cancel := context.WithTimeout(ctx, 8*time.Second)
			defer cancel()
			it, err := p.fetchItem(ictx, id)
			if err != nil {
				slog.Debug("hackernews: item fetch failed", "id", id, "error", err)
				done <- result{idx: i}
				return
			}
			done <- result{idx: i, item: it, ok: true}
		}(i, id)
	}

	out := make([]result, len(ids))
	for range ids {
		r := <-done
		out[r.idx] = r
	}
	items := make([]hnItem, 0, len(ids))
	for _, r := range out {
		if r.ok && !r.item.Dead && !r.item.Deleted {
			items = append(items, r.item)
		}
	}
	return items
}

func toFeedItem(it hnItem) model.FeedItem {
	return model.FeedItem{
		ID:           fmt.Sprintf("hn_%d", it.ID),
		Platform:     model.PlatformHN,
		Title:        it.Title,
		Body:         htmltext.Plain(it.Text),
		URL:          it.URL,
		Author:       authorOrDeleted(it.By),
		Timestamp:    it.Time * 1000,
		Score:        it.Score,
		CommentCount: it.Descendants,
	}
}

func normalizeList(filter string) string {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "new", "newstories":
		return "new"
	case "best", "beststories":
		return "best"
	case "ask", "askstories":
		return "ask"
	case "show", "showstories":
		return "show"
	case "job", "jobs", "jobstories":
		return "job"
	default:
		return "top"
	}
}

func authorOrDeleted(by string) string {
	if by == "" {
		return "[deleted]"
	}
	return by
}
