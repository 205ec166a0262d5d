package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/scraper"
)

func TestHealthStatusLevels(t *testing.T) {
	tests := []struct {
		name       string
		stats      models.PoolStats
		succeeded  int64
		challenges int64
		want       string
	}{
		{"idle service", models.PoolStats{MaxPages: 5}, 0, 0, "healthy"},
		{"normal load", models.PoolStats{MaxPages: 5, ActivePages: 3}, 100, 4, "healthy"},
		{"pool saturated", models.PoolStats{MaxPages: 5, ActivePages: 5}, 100, 4, "saturated"},
		{"mostly challenges", models.PoolStats{MaxPages: 5}, 8, 40, "blocked"},
		{"challenges but winning", models.PoolStats{MaxPages: 5}, 500, 40, "healthy"},
		{"blocked outranks saturation", models.PoolStats{MaxPages: 5, ActivePages: 5}, 2, 30, "blocked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := healthStatus(tt.stats, tt.succeeded, tt.challenges); got != tt.want {
				t.Errorf("healthStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHealthEndpointPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(&scraper.Scraper{}, time.Now().Add(-90*time.Second)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
	if resp.Uptime == "" || resp.Version == "" {
		t.Errorf("Uptime/Version missing: %+v", resp)
	}
	if resp.RunsSucceeded != 0 || resp.RunsFailed != 0 || resp.ChallengesDetected != 0 {
		t.Errorf("fresh scraper reported non-zero counters: %+v", resp)
	}
}
