package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ben4mn/Pulse/internal/cache"
	"github.com/ben4mn/Pulse/internal/model"
)

const (
	articleTTL = 30 * time.Minute
	readingWPM = 230
)

// ArticleService resolves full reading-view articles, cached per item
// in the short-lived scope.
type ArticleService struct {
	extractor Extractor
	cache     *cache.Cache
}

func NewArticleService(extractor Extractor, c *cache.Cache) *ArticleService {
	return &ArticleService{extractor: extractor, cache: c}
}

var titleRe = regexp.MustCompile(`(?m)^#\s+(.+)`)

// Article extracts the readable article for a feed item's URL.
func (s *ArticleService) Article(ctx context.Context, itemID, target string) (model.Article, error) {
	cacheKey := "article_" + itemID
	var cached model.Article
	if s.cache.Get(ctx, cacheKey, articleTTL, &cached) {
		return cached, nil
	}

	content, err := s.content(ctx, target)
	if err != nil {
		return model.Article{}, err
	}

	title := target
	if m := titleRe.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
	}
	wordCount := len(strings.Fields(content))
	readingTime := (wordCount + readingWPM - 1) / readingWPM
	if readingTime < 1 {
		readingTime = 1
	}

	article := model.Article{
		Title:       title,
		Content:     content,
		URL:         target,
		WordCount:   wordCount,
		ReadingTime: readingTime,
	}
	s.cache.Set(ctx, cacheKey, article)
	return article, nil
}

// content prefers the reader's markdown rendition when available.
func (s *ArticleService) content(ctx context.Context, target string) (string, error) {
	if rc, ok := s.extractor.(*ReaderClient); ok {
		return rc.Markdown(ctx, target)
	}
	return s.extractor.Text(ctx, target)
}
