package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/cache"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/pipeline"
)

// Extract returns a handler for POST /api/v1/extract.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (when max_age is set).
//  3. Pipeline.Fetch   → rendered markup          (records navigation_ms)
//  4. pipeline.Process → normalized records       (records extraction_ms)
//  5. Fill Timing, store in cache, return 200.
func Extract(p *pipeline.Pipeline, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		if cc != nil && req.MaxAge > 0 {
			cacheKey := cache.Key(req.URL, req.TableIDs)
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				// Shallow copy: the cached entry is shared across
				// requests and must never be written to.
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, &resp)
				return
			}
		}

		navStart := time.Now()
		fetched, err := p.Fetch(c.Request.Context(), &req)
		navigationMs := time.Since(navStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
			})
			return
		}

		extractStart := time.Now()
		result, err := pipeline.Process(fetched, &req)
		extractionMs := time.Since(extractStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
				ExtractionMs: extractionMs,
			})
			return
		}

		resp := &models.ExtractResponse{
			Success: true,
			Result:  result,
			Timing: models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
				ExtractionMs: extractionMs,
			},
		}

		if cc != nil && req.MaxAge > 0 {
			// Store a copy so later mutations of this response (the
			// cache-status tag below) never touch the shared entry.
			stored := *resp
			cc.Set(cache.Key(req.URL, req.TableIDs), &stored)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps an ExtractError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	ee := models.AsExtractError(err)

	c.JSON(mapErrorToStatus(ee), models.ExtractResponse{
		Success: false,
		Error:   ee.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ExtractError) int {
	switch e.Code {
	case models.ErrCodeLoadTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeBlocked, models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeTableNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
