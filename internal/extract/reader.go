// Package extract resolves an item's URL to readable article text,
// either through a remote reader endpoint or locally via readability.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	textTimeout = 10 * time.Second

	// Reader responses are article-sized; cap reads defensively.
	maxBodyBytes = 4 << 20
)

// Extractor turns a URL into plain article text. Failures are expected
// and per-item; callers skip the item rather than abort.
type Extractor interface {
	Text(ctx context.Context, url string) (string, error)
}

// ReaderClient fetches rendered text from a Jina-style reader endpoint
// (GET <base>/<url>), which handles JS-heavy pages server-side.
type ReaderClient struct {
	baseURL string
	client  *http.Client
}

// NewReader creates a reader client, e.g. for "https://r.jina.ai".
func NewReader(baseURL string) *ReaderClient {
	return &ReaderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Text returns the page as plain text.
func (r *ReaderClient) Text(ctx context.Context, target string) (string, error) {
	return r.fetch(ctx, target, "text/plain")
}

// Markdown returns the page as markdown with the reader's preamble
// (Title:, URL Source:, Markdown Content:) stripped.
func (r *ReaderClient) Markdown(ctx context.Context, target string) (string, error) {
	content, err := r.fetch(ctx, target, "text/markdown")
	if err != nil {
		return "", err
	}
	const marker = "Markdown Content:\n"
	if idx := strings.Index(content, marker); idx != -1 {
		content = content[idx+len(marker):]
	}
	return content, nil
}

func (r *ReaderClient) fetch(ctx context.Context, target, accept string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, textTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", accept)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("reader: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
