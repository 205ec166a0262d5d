package table

import (
	"errors"
	"testing"

	"github.com/tarbouchdata/scoutscrape/models"
)

const livePage = `<html><body><div id="content">
<table id="scout_full_MF">
<thead><tr><th>Statistic</th><th>Per 90</th><th>Percentile</th></tr></thead>
<tbody><tr><td>Goals</td><td>0.49</td><td>92</td></tr></tbody>
</table>
</div></body></html>`

const commentPage = `<html><body><div id="content">
<div class="table_wrapper">
<!--
<table id="scout_full_FW">
<thead><tr><th>Statistic</th><th>Per 90</th><th>Percentile</th></tr></thead>
<tbody><tr><td>Shots</td><td>3.1</td><td>85</td></tr></tbody>
</table>
-->
</div>
</div></body></html>`

func TestLocateLiveDOM(t *testing.T) {
	loc, err := Locate(livePage, []string{"scout_full_MF"})
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if loc.ID != "scout_full_MF" {
		t.Errorf("ID = %q, want scout_full_MF", loc.ID)
	}
	if loc.FromComment {
		t.Error("live table reported as comment-recovered")
	}
}

func TestLocateCommentEmbedded(t *testing.T) {
	loc, err := Locate(commentPage, []string{"scout_full_FW"})
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if loc.ID != "scout_full_FW" {
		t.Errorf("ID = %q, want scout_full_FW", loc.ID)
	}
	if !loc.FromComment {
		t.Error("comment-embedded table not reported as such")
	}
}

func TestLocateVariantPriorityOrder(t *testing.T) {
	// A goalkeeper id is requested first but only the midfielder table
	// exists; the fallback variant must win and be reported.
	ids := []string{"scout_full_GK", "scout_full_MF"}
	loc, err := Locate(livePage, ids)
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if loc.ID != "scout_full_MF" {
		t.Errorf("matched id = %q, want the fallback scout_full_MF", loc.ID)
	}
}

func TestLocatePrefersLiveOverComment(t *testing.T) {
	page := `<html><body>
<table id="scout_full_MF"><tr><th>Statistic</th></tr><tr><td>live</td></tr></table>
<!-- <table id="scout_full_MF"><tr><th>Statistic</th></tr><tr><td>hidden</td></tr></table> -->
</body></html>`

	loc, err := Locate(page, []string{"scout_full_MF"})
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if loc.FromComment {
		t.Error("comment copy won over the live table for the same id")
	}
}

func TestLocateWildcardPrefix(t *testing.T) {
	loc, err := Locate(livePage, []string{"scout_full_*"})
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if loc.ID != "scout_full_MF" {
		t.Errorf("ID = %q, want scout_full_MF", loc.ID)
	}
}

func TestLocateWildcardFirstInDocumentOrder(t *testing.T) {
	page := `<html><body>
<table id="scout_summary_MF"><tr><td>first</td></tr></table>
<table id="scout_full_MF"><tr><td>second</td></tr></table>
</body></html>`

	loc, err := Locate(page, []string{"scout_*"})
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if loc.ID != "scout_summary_MF" {
		t.Errorf("ID = %q, want the first match in document order", loc.ID)
	}
}

func TestLocateNotFound(t *testing.T) {
	ids := []string{"scout_full_GK", "scout_full_DF"}
	_, err := Locate(livePage, ids)
	if err == nil {
		t.Fatal("Locate() succeeded for absent ids")
	}

	var ee *models.ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *models.ExtractError", err)
	}
	if ee.Code != models.ErrCodeTableNotFound {
		t.Errorf("Code = %q, want %q", ee.Code, models.ErrCodeTableNotFound)
	}
	if len(ee.Attempted) != len(ids) {
		t.Fatalf("Attempted = %v, want %v", ee.Attempted, ids)
	}
	for i := range ids {
		if ee.Attempted[i] != ids[i] {
			t.Errorf("Attempted[%d] = %q, want %q", i, ee.Attempted[i], ids[i])
		}
	}
}
