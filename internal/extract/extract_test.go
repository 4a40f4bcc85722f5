package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ben4mn/Pulse/internal/cache"
)

func TestReaderTextRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/plain" {
			t.Errorf("accept=%q", got)
		}
		if !strings.Contains(r.URL.String(), "example.com") {
			t.Errorf("target missing from path: %s", r.URL)
		}
		fmt.Fprint(w, "plain text body")
	}))
	defer srv.Close()

	rc := NewReader(srv.URL)
	got, err := rc.Text(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "plain text body" {
		t.Fatalf("got %q", got)
	}
}

func TestReaderMarkdownStripsPreamble(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Title: Some Page\nURL Source: https://example.com\n\nMarkdown Content:\n# Heading\n\nBody text.")
	}))
	defer srv.Close()

	rc := NewReader(srv.URL)
	got, err := rc.Markdown(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if got != "# Heading\n\nBody text." {
		t.Fatalf("got %q", got)
	}
}

func TestReaderMarkdownWithoutPreamble(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# Bare\n\nNo preamble here.")
	}))
	defer srv.Close()

	rc := NewReader(srv.URL)
	got, err := rc.Markdown(context.Background(), "https://example.com")
	if err != nil || !strings.HasPrefix(got, "# Bare") {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestReaderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	rc := NewReader(srv.URL)
	if _, err := rc.Text(context.Background(), "https://example.com"); err == nil {
		t.Fatalf("expected error on 403")
	}
}

type staticExtractor struct {
	text string
	err  error
	hits atomic.Int64
}

func (s *staticExtractor) Text(_ context.Context, _ string) (string, error) {
	s.hits.Add(1)
	return s.text, s.err
}

func TestArticleMetadata(t *testing.T) {
	words := strings.TrimSpace(strings.Repeat("word ", 500))
	ext := &staticExtractor{text: "# The Headline\n\n" + words}
	svc := NewArticleService(ext, cache.New(cache.NewMemoryStore(0)))

	a, err := svc.Article(context.Background(), "hn_1", "https://example.com/post")
	if err != nil {
		t.Fatalf("Article: %v", err)
	}
	if a.Title != "The Headline" {
		t.Errorf("title=%q", a.Title)
	}
	if a.URL != "https://example.com/post" {
		t.Errorf("url=%q", a.URL)
	}
	// 502 words: the heading line counts too.
	if a.WordCount != 503 {
		t.Errorf("wordCount=%d", a.WordCount)
	}
	if a.ReadingTime != 3 {
		t.Errorf("readingTime=%d, want 3 at 230wpm", a.ReadingTime)
	}
}

func TestArticleTitleFallsBackToURL(t *testing.T) {
	ext := &staticExtractor{text: "no heading at all"}
	svc := NewArticleService(ext, cache.New(cache.NewMemoryStore(0)))

	a, err := svc.Article(context.Background(), "hn_2", "https://example.com/x")
	if err != nil {
		t.Fatalf("Article: %v", err)
	}
	if a.Title != "https://example.com/x" {
		t.Errorf("title=%q", a.Title)
	}
	if a.ReadingTime != 1 {
		t.Errorf("readingTime=%d, want minimum 1", a.ReadingTime)
	}
}

func TestArticleCachesPerItem(t *testing.T) {
	ext := &staticExtractor{text: "# T\n\nbody"}
	svc := NewArticleService(ext, cache.New(cache.NewMemoryStore(0)))

	for i := 0; i < 2; i++ {
		if _, err := svc.Article(context.Background(), "hn_3", "https://example.com"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if ext.hits.Load() != 1 {
		t.Fatalf("hits=%d, want 1", ext.hits.Load())
	}
}

func TestArticlePropagatesExtractionFailure(t *testing.T) {
	ext := &staticExtractor{err: errors.New("paywalled")}
	svc := NewArticleService(ext, cache.New(cache.NewMemoryStore(0)))

	if _, err := svc.Article(context.Background(), "hn_4", "https://example.com"); err == nil {
		t.Fatalf("expected extraction error")
	}
}
