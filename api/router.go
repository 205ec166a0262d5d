package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/api/handler"
	"github.com/tarbouchdata/scoutscrape/api/middleware"
	"github.com/tarbouchdata/scoutscrape/cache"
	"github.com/tarbouchdata/scoutscrape/config"
	"github.com/tarbouchdata/scoutscrape/pipeline"
	"github.com/tarbouchdata/scoutscrape/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, p *pipeline.Pipeline, factory pipeline.SessionFactory, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Single extraction
	protected.POST("/extract", handler.Extract(p, cc))

	// Batch
	protected.POST("/batch/extract", handler.PostBatch(factory, cfg.Webhook))
	protected.GET("/batch/:id", handler.GetBatch())

	return r
}
