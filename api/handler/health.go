package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/scraper"
)

const version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status moves through three levels:
//
//	healthy:   normal operation
//	saturated: every pooled page is busy; new runs will queue
//	blocked:   recent fetches are mostly challenge interstitials, which
//	           usually means the stealth profile has been burned and the
//	           operator should rotate UA/proxy before retrying
func Health(sc *scraper.Scraper, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()
		succeeded, failed := sc.Runs()
		challenges := sc.ChallengesDetected()

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:             healthStatus(stats, succeeded, challenges),
			Uptime:             time.Since(startTime).Round(time.Second).String(),
			PoolStats:          stats,
			RunsSucceeded:      succeeded,
			RunsFailed:         failed,
			ChallengesDetected: challenges,
			RememberedDomains:  sc.RememberedDomains(),
			Version:            version,
		})
	}
}

// healthStatus derives the reported level from the scraper's counters. The
// challenge check comes first: a blocked scraper with idle pages is still
// blocked.
func healthStatus(stats models.PoolStats, succeeded, challenges int64) string {
	switch {
	case challenges > 10 && challenges > succeeded:
		return "blocked"
	case stats.MaxPages > 0 && stats.ActivePages >= stats.MaxPages:
		return "saturated"
	default:
		return "healthy"
	}
}
