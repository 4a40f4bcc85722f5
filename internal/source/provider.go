// Package source defines the contract every platform adapter implements
// and the error types the aggregation layer dispatches on.
package source

import (
	"context"
	"errors"

	"github.com/ben4mn/Pulse/internal/model"
)

// Provider adapts one platform's API to normalized feed items.
//
// FetchFeed parses filter defensively: malformed input yields an empty
// result with HasMore=false rather than an error wherever feasible.
type Provider interface {
	Platform() model.Platform
	FetchFeed(ctx context.Context, filter string, page int) (model.FeedResult, error)
}

// CommentFetcher is implemented by providers with threaded discussions.
type CommentFetcher interface {
	FetchComments(ctx context.Context, itemID string) ([]model.Comment, error)
}

// RateLimitError marks an upstream 429 (or platform equivalent). It is
// distinct from all other failures so callers can surface a banner and
// skip retries instead of treating the item as missing.
type RateLimitError struct {
	Endpoint string
}

func (e *RateLimitError) Error() string {
	return "rate limited by " + e.Endpoint
}

// AsRateLimit unwraps err into a RateLimitError if it is one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
