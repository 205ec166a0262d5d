package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/cache"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/pipeline"
	"github.com/tarbouchdata/scoutscrape/scraper"
)

const scoutMarkup = `<html><body><div id="content">
<table id="scout_full_MF">
<thead><tr><th>Statistic</th><th>Per 90</th><th>Percentile</th></tr></thead>
<tbody>
<tr><td>Goals</td><td>0.49</td><td>92</td></tr>
<tr><td>Tackles</td><td>1.9</td><td>64</td></tr>
</tbody>
</table>
</div></body></html>`

// staticFetcher serves fixed markup in place of a browser.
type staticFetcher struct {
	html string
	err  error
}

func (f *staticFetcher) Fetch(_ context.Context, req *models.ExtractRequest) (*scraper.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.FetchResult{
		HTML:       f.html,
		FinalURL:   req.URL,
		StatusCode: 200,
		Attempts:   1,
		EngineUsed: "browser",
	}, nil
}

func extractRouter(f pipeline.Fetcher, cc *cache.Cache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/extract", Extract(pipeline.New(f), cc))
	return r
}

func postExtract(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, models.ExtractResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp models.ExtractResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return w, resp
}

func TestExtractEndpoint(t *testing.T) {
	r := extractRouter(&staticFetcher{html: scoutMarkup}, nil)

	w, resp := postExtract(t, r, `{"url":"https://stats.example.com/p/1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !resp.Success || resp.Result == nil {
		t.Fatal("expected a successful result")
	}
	if resp.Result.Meta.TableID != "scout_full_MF" {
		t.Errorf("TableID = %q, want scout_full_MF", resp.Result.Meta.TableID)
	}
	if resp.Result.Meta.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", resp.Result.Meta.RowCount)
	}
}

func TestExtractTableNotFoundMapsTo404(t *testing.T) {
	r := extractRouter(&staticFetcher{html: "<html><body><p>no tables here</p></body></html>"}, nil)

	w, resp := postExtract(t, r, `{"url":"https://stats.example.com/p/1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeTableNotFound {
		t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeTableNotFound)
	}
}

func TestExtractCacheHitDoesNotMutateEntry(t *testing.T) {
	cc := cache.New(8)
	r := extractRouter(&staticFetcher{html: scoutMarkup}, cc)
	body := `{"url":"https://stats.example.com/p/1","max_age":60000}`

	_, first := postExtract(t, r, body)
	if first.CacheStatus != "miss" {
		t.Fatalf("first CacheStatus = %q, want miss", first.CacheStatus)
	}

	_, second := postExtract(t, r, body)
	if second.CacheStatus != "hit" {
		t.Fatalf("second CacheStatus = %q, want hit", second.CacheStatus)
	}
	if second.Result == nil || second.Result.Meta.TableID != "scout_full_MF" {
		t.Fatal("cached result payload is incomplete")
	}

	// The shared cache entry must stay untouched by per-request tagging:
	// responses are copies, so the stored entry never carries "hit" or
	// "miss" state from whoever read it last.
	key := cache.Key("https://stats.example.com/p/1", models.ScoutTableIDs(""))
	stored, ok := cc.Get(key, 60000)
	if !ok {
		t.Fatal("entry missing from cache after a hit")
	}
	if stored.CacheStatus != "" {
		t.Errorf("stored CacheStatus = %q, want empty (request tags leaked into the cache)", stored.CacheStatus)
	}

	_, third := postExtract(t, r, body)
	if third.CacheStatus != "hit" {
		t.Errorf("third CacheStatus = %q, want hit", third.CacheStatus)
	}
}

func TestExtractInvalidBody(t *testing.T) {
	r := extractRouter(&staticFetcher{html: scoutMarkup}, nil)

	w, resp := postExtract(t, r, `{"url":"not a url"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeInvalidInput)
	}
}
