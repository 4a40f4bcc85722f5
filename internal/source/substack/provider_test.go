package substack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ben4mn/Pulse/internal/cache"
)

func rssFeed(title string, items ...string) string {
	body := ""
	for _, it := range items {
		body += it
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>` + title + `</title>` + body + `</channel></rss>`
}

func rssItem(title, link, author, pubDate, desc string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><dc:creator xmlns:dc="http://purl.org/dc/elements/1.1/">%s</dc:creator><pubDate>%s</pubDate><description>%s</description></item>`,
		title, link, author, pubDate, desc)
}

func TestFetchFeedMergesPublicationsNewestFirst(t *testing.T) {
	alpha := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			t.Errorf("path=%s", r.URL.Path)
		}
		fmt.Fprint(w, rssFeed("Alpha",
			rssItem("Older post", "https://alpha.example/p/1", "Ann", "Mon, 13 Nov 2023 10:00:00 GMT", "<p>first</p>"),
		))
	}))
	defer alpha.Close()
	beta := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed("Beta",
			rssItem("Newer post", "https://beta.example/p/2", "", "Tue, 14 Nov 2023 10:00:00 GMT", "<p>second</p>"),
		))
	}))
	defer beta.Close()

	p := New(cache.New(cache.NewMemoryStore(0)))
	res, err := p.FetchFeed(context.Background(), alpha.URL+","+beta.URL, 0)
	if err != nil {
		t.Fatalf("FetchFeed: %v", err)
	}
	if res.HasMore {
		t.Fatalf("hasMore must always be false")
	}
	if len(res.Items) != 2 {
		t.Fatalf("len=%d, want 2", len(res.Items))
	}
	if res.Items[0].Title != "Newer post" {
		t.Fatalf("not newest-first: %s", res.Items[0].Title)
	}
	if res.Items[0].Body != "second" {
		t.Errorf("body=%q, want stripped html", res.Items[0].Body)
	}
	if res.Items[1].Author != "Ann" {
		t.Errorf("author=%q", res.Items[1].Author)
	}
}

func TestFetchFeedSkipsFailingPublication(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed("Good",
			rssItem("Post", "https://good.example/p/1", "A", "Mon, 13 Nov 2023 10:00:00 GMT", "x"),
		))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	p := New(cache.New(cache.NewMemoryStore(0)))
	res, err := p.FetchFeed(context.Background(), bad.URL+","+good.URL, 0)
	if err != nil {
		t.Fatalf("a failing publication must not fail the fetch: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Title != "Post" {
		t.Fatalf("items=%+v", res.Items)
	}
}

func TestFetchFeedCachesPerPublication(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, rssFeed("Cached",
			rssItem("Post", "https://c.example/p/1", "A", "Mon, 13 Nov 2023 10:00:00 GMT", "x"),
		))
	}))
	defer srv.Close()

	p := New(cache.New(cache.NewMemoryStore(0)))
	for i := 0; i < 3; i++ {
		if _, err := p.FetchFeed(context.Background(), srv.URL, 0); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d, want 1", hits.Load())
	}
}

func TestFetchFeedEmptyFilter(t *testing.T) {
	p := New(cache.New(cache.NewMemoryStore(0)))
	res, err := p.FetchFeed(context.Background(), " , ", 0)
	if err != nil || len(res.Items) != 0 {
		t.Fatalf("items=%d err=%v", len(res.Items), err)
	}
}

func TestResolveFeedURL(t *testing.T) {
	cases := map[string]string{
		"stratechery":              "https://stratechery.substack.com/feed",
		"blog.example.com":         "https://blog.example.com/feed",
		"https://pub.example.com":  "https://pub.example.com/feed",
		"https://pub.example.com/": "https://pub.example.com/feed",
	}
	for in, want := range cases {
		if got := resolveFeedURL(in); got != want {
			t.Errorf("resolveFeedURL(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestExtractPublication(t *testing.T) {
	cases := map[string]string{
		"https://stratechery.substack.com/feed": "stratechery",
		"https://www.blog.example.com/feed":     "blog.example.com",
	}
	for in, want := range cases {
		if got := extractPublication(in); got != want {
			t.Errorf("extractPublication(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestLinkDigestStableAndBounded(t *testing.T) {
	a := linkDigest("https://example.com/p/some-very-long-slug-that-keeps-going")
	b := linkDigest("https://example.com/p/some-very-long-slug-that-keeps-going")
	if a != b {
		t.Fatalf("digest not stable")
	}
	if len(a) > 32 {
		t.Fatalf("digest too long: %d", len(a))
	}
	if a == linkDigest("https://example.com/p/other") {
		t.Fatalf("distinct links collided")
	}
}
