package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ReadabilityExtractor downloads the page itself and extracts the main
// content locally. Used when no reader endpoint is configured.
type ReadabilityExtractor struct {
	client *http.Client
}

func NewReadability() *ReadabilityExtractor {
	return &ReadabilityExtractor{client: &http.Client{Timeout: 15 * time.Second}}
}

func (e *ReadabilityExtractor) Text(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, textTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("extract: status %d", resp.StatusCode)
	}

	pageURL, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}
