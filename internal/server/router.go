// Package server exposes the aggregation pipeline as a JSON API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ben4mn/Pulse/internal/aggregate"
	"github.com/ben4mn/Pulse/internal/curation"
	"github.com/ben4mn/Pulse/internal/extract"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Aggregator *aggregate.Aggregator
	Articles   *extract.ArticleService // nil disables /article
	Profiles   *curation.Store         // nil disables /profile
}

// New builds the gin engine with all routes registered.
func New(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{deps: deps}
	api := r.Group("/api/v1")
	{
		api.GET("/feed/:tab", h.feed)
		api.POST("/refresh/:tab", h.refresh)
		api.GET("/comments/:id", h.comments)
		api.GET("/article", h.article)
		api.GET("/ratelimits", h.rateLimits)
		api.DELETE("/ratelimits", h.dismissRateLimits)
		api.GET("/profile", h.profile)
		api.POST("/interactions", h.recordInteraction)
	}
	return r
}
