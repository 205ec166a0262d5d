package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/config"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/pipeline"
	"github.com/tarbouchdata/scoutscrape/scraper"
)

// urlSwitchFetcher serves markup for every URL except blockURL, which is
// answered with a BLOCKED error.
type urlSwitchFetcher struct {
	blockURL string
	html     string
}

func (f *urlSwitchFetcher) Fetch(_ context.Context, req *models.ExtractRequest) (*scraper.FetchResult, error) {
	if req.URL == f.blockURL {
		return nil, models.NewExtractError(models.ErrCodeBlocked, "anti-automation challenge persisted", nil)
	}
	return &scraper.FetchResult{
		HTML:       f.html,
		FinalURL:   req.URL,
		StatusCode: 200,
		Attempts:   1,
		EngineUsed: "browser",
	}, nil
}

func batchRouter(factory pipeline.SessionFactory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/batch", PostBatch(factory, config.WebhookConfig{}))
	r.GET("/batch/:id", GetBatch())
	return r
}

// pollBatch polls the status endpoint until the job leaves "processing".
func pollBatch(t *testing.T, r *gin.Engine, id string) models.BatchStatusResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status poll returned %d", w.Code)
		}
		var snap models.BatchStatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			t.Fatalf("status response is not valid JSON: %v", err)
		}
		if snap.Status != "processing" {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch %s still processing after deadline", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBatchLifecycle(t *testing.T) {
	factory := func() (*pipeline.Pipeline, func(), error) {
		return pipeline.New(&staticFetcher{html: scoutMarkup}), func() {}, nil
	}
	r := batchRouter(factory)

	body := `{"players":[
		{"url":"https://stats.example.com/p/1"},
		{"url":"https://stats.example.com/p/2"},
		{"url":"https://stats.example.com/p/3"}
	],"options":{"concurrency":2}}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var created models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create response is not valid JSON: %v", err)
	}
	if created.Status != "processing" || created.Total != 3 {
		t.Fatalf("create response = %+v", created)
	}

	snap := pollBatch(t, r, created.ID)
	if snap.Status != "completed" {
		t.Errorf("Status = %q, want completed", snap.Status)
	}
	if snap.Completed != 3 || snap.Failed != 0 {
		t.Errorf("Completed/Failed = %d/%d, want 3/0", snap.Completed, snap.Failed)
	}
	for i, res := range snap.Results {
		if res == nil || !res.Success {
			t.Fatalf("Results[%d] = %+v, want success", i, res)
		}
		if res.Result.Meta.TableID != "scout_full_MF" {
			t.Errorf("Results[%d].TableID = %q, want scout_full_MF", i, res.Result.Meta.TableID)
		}
	}
}

func TestBatchPartialFailure(t *testing.T) {
	// One worker session serves both items; its fetcher answers the
	// second URL with a persistent challenge.
	factory := func() (*pipeline.Pipeline, func(), error) {
		return pipeline.New(&urlSwitchFetcher{
			blockURL: "https://stats.example.com/p/2",
			html:     scoutMarkup,
		}), func() {}, nil
	}
	r := batchRouter(factory)

	body := `{"players":[
		{"url":"https://stats.example.com/p/1"},
		{"url":"https://stats.example.com/p/2"}
	]}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var created models.BatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create response is not valid JSON: %v", err)
	}

	snap := pollBatch(t, r, created.ID)
	if snap.Status != "partial" {
		t.Errorf("Status = %q, want partial", snap.Status)
	}
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if snap.Results[0] == nil || !snap.Results[0].Success {
		t.Error("first item should have succeeded")
	}
	if snap.Results[1] == nil || snap.Results[1].Success {
		t.Fatal("second item should have failed")
	}
	if snap.Results[1].Error.Code != models.ErrCodeBlocked {
		t.Errorf("failed item code = %q, want %q", snap.Results[1].Error.Code, models.ErrCodeBlocked)
	}
}

func TestGetBatchUnknownID(t *testing.T) {
	r := batchRouter(func() (*pipeline.Pipeline, func(), error) {
		return pipeline.New(&staticFetcher{html: scoutMarkup}), func() {}, nil
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch/batch-nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
