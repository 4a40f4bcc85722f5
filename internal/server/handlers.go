package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ben4mn/Pulse/internal/aggregate"
	"github.com/ben4mn/Pulse/internal/curation"
	"github.com/ben4mn/Pulse/internal/model"
	"github.com/ben4mn/Pulse/internal/source"
)

type handlers struct {
	deps Deps
}

func (h *handlers) feed(c *gin.Context) {
	tab := c.Param("tab")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	if page < 0 {
		page = 0
	}

	res, err := h.deps.Aggregator.FetchTab(c.Request.Context(), tab, page)
	if err != nil {
		h.feedError(c, tab, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) refresh(c *gin.Context) {
	tab := c.Param("tab")
	res, err := h.deps.Aggregator.Refresh(c.Request.Context(), tab)
	if err != nil {
		h.feedError(c, tab, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) feedError(c *gin.Context, tab string, err error) {
	if rl, ok := source.AsRateLimit(err); ok {
		h.deps.Aggregator.RateLimits().Notify(rl.Endpoint)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited", "endpoint": rl.Endpoint})
		return
	}
	if errors.Is(err, aggregate.ErrUnknownTab) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slog.Error("feed fetch failed", "tab", tab, "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed"})
}

func (h *handlers) comments(c *gin.Context) {
	id := c.Param("id")
	platform := model.PlatformFromItemID(id)
	if !platform.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized item id"})
		return
	}
	provider, ok := h.deps.Aggregator.Provider(platform)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no provider for platform"})
		return
	}
	fetcher, ok := provider.(source.CommentFetcher)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "comments not supported for platform"})
		return
	}

	comments, err := fetcher.FetchComments(c.Request.Context(), id)
	if err != nil {
		if rl, ok := source.AsRateLimit(err); ok {
			h.deps.Aggregator.RateLimits().Notify(rl.Endpoint)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited", "endpoint": rl.Endpoint})
			return
		}
		slog.Error("comment fetch failed", "id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "comment fetch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *handlers) article(c *gin.Context) {
	if h.deps.Articles == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article extraction not configured"})
		return
	}
	id := c.Query("id")
	target := c.Query("url")
	if id == "" || target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and url are required"})
		return
	}

	article, err := h.deps.Articles.Article(c.Request.Context(), id, target)
	if err != nil {
		slog.Error("article extraction failed", "id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "article extraction failed"})
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *handlers) rateLimits(c *gin.Context) {
	n := h.deps.Aggregator.RateLimits()
	c.JSON(http.StatusOK, gin.H{"active": n.Active(), "hits": n.Hits()})
}

func (h *handlers) dismissRateLimits(c *gin.Context) {
	h.deps.Aggregator.RateLimits().Dismiss()
	c.JSON(http.StatusOK, gin.H{"active": false})
}

func (h *handlers) profile(c *gin.Context) {
	if h.deps.Profiles == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile store not configured"})
		return
	}
	p := h.deps.Profiles.Load(c.Request.Context())
	c.JSON(http.StatusOK, profileView(p))
}

func (h *handlers) recordInteraction(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Platform string `json:"platform"`
		Title    string `json:"title"`
		URL      string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	platform := model.Platform(req.Platform)
	if !platform.Valid() && req.ID != "" {
		platform = model.PlatformFromItemID(req.ID)
	}
	if !platform.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}

	h.deps.Aggregator.RecordInteraction(c.Request.Context(), model.FeedItem{
		ID:       req.ID,
		Platform: platform,
		Title:    req.Title,
		URL:      req.URL,
	})
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

func profileView(p *curation.Profile) gin.H {
	return gin.H{
		"keywords":     p.Keywords,
		"domains":      p.Domains,
		"platforms":    p.Platforms,
		"topKeywords":  p.TopKeywords(20),
		"interactions": p.TotalInteractions(),
	}
}
