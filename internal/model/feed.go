package model

import "strings"

// Platform identifies a content source.
type Platform string

const (
	PlatformHN       Platform = "hn"
	PlatformReddit   Platform = "reddit"
	PlatformSubstack Platform = "substack"
	PlatformTwitter  Platform = "twitter"
	PlatformThreads  Platform = "threads"
)

// Platforms lists all known platforms in display order.
func Platforms() []Platform {
	return []Platform{PlatformHN, PlatformReddit, PlatformSubstack, PlatformTwitter, PlatformThreads}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformHN, PlatformReddit, PlatformSubstack, PlatformTwitter, PlatformThreads:
		return true
	}
	return false
}

// PlatformFromItemID extracts the platform from a namespaced item ID
// such as "reddit_abc123". Returns "" when the prefix is unknown.
func PlatformFromItemID(id string) Platform {
	prefix, _, ok := strings.Cut(id, "_")
	if !ok {
		return ""
	}
	p := Platform(prefix)
	if !p.Valid() {
		return ""
	}
	return p
}

// FeedItem is a normalized content unit from any platform.
//
// ID is immutable once assigned and namespaced by platform prefix
// ("hn_123", "reddit_abc") so items never collide across sources.
// Summary and AIScore are the only fields written after creation,
// and only by the enrichment/scoring path.
type FeedItem struct {
	ID           string   `json:"id"`
	Platform     Platform `json:"platform"`
	Title        string   `json:"title,omitempty"`
	Body         string   `json:"body,omitempty"`
	URL          string   `json:"url,omitempty"`
	Author       string   `json:"author"`
	Timestamp    int64    `json:"timestamp"` // epoch millis
	Score        int      `json:"score,omitempty"`
	CommentCount int      `json:"commentCount,omitempty"`
	Thumbnail    string   `json:"thumbnail,omitempty"`
	Subreddit    string   `json:"subreddit,omitempty"`
	Publication  string   `json:"publication,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	AIScore      *float64 `json:"aiScore,omitempty"`
}

// Comment is one node of a discussion tree. Children keep the
// source-provided reply order. Comments are immutable after fetch.
type Comment struct {
	ID        string    `json:"id"`
	Platform  Platform  `json:"platform"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Timestamp int64     `json:"timestamp"`
	Score     int       `json:"score,omitempty"`
	Depth     int       `json:"depth"`
	Children  []Comment `json:"children"`
}

// FeedResult is one page of a provider's feed. HasMore=false is
// authoritative: callers must not request further pages.
type FeedResult struct {
	Items   []FeedItem `json:"items"`
	HasMore bool       `json:"hasMore"`
	Cursor  string     `json:"cursor,omitempty"`
}

// Article is extracted plain/markdown text for a feed item's URL.
type Article struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	WordCount   int    `json:"wordCount"`
	ReadingTime int    `json:"readingTime"` // minutes, at ~230 wpm
}
