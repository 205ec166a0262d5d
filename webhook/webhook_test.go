package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeliverSignsAndCarriesExtractionInfo(t *testing.T) {
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Scoutscrape-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	event := NewExtractFailed("batch-abc123", &ExtractionInfo{
		URL:     "https://stats.example.com/p/1",
		Code:    "BLOCKED",
		Message: "anti-automation challenge persisted",
	})

	if err := Deliver(context.Background(), srv.URL, "topsecret", event); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	if !strings.HasPrefix(gotSig, "sha256=") {
		t.Fatalf("signature header = %q, want sha256= prefix", gotSig)
	}
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(gotBody)
	if want := "sha256=" + hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var received Event
	if err := json.Unmarshal(gotBody, &received); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if received.Type != TypeExtractFailed {
		t.Errorf("Type = %q, want %q", received.Type, TypeExtractFailed)
	}
	if received.Extraction == nil || received.Extraction.Code != "BLOCKED" {
		t.Errorf("Extraction = %+v, want BLOCKED failure info", received.Extraction)
	}
	if received.Batch != nil {
		t.Error("extract.failed event should not carry a batch summary")
	}
}

func TestDeliverBatchCompletedPayload(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	event := NewBatchCompleted("batch-abc123", &BatchInfo{
		Status:    "partial",
		Total:     2,
		Completed: 2,
		Failed:    1,
		Items: []BatchItem{
			{URL: "https://stats.example.com/p/1", OK: true, TableID: "scout_full_MF", RowCount: 140},
			{URL: "https://stats.example.com/p/2", OK: false, Error: "BLOCKED"},
		},
	})

	if err := Deliver(context.Background(), srv.URL, "", event); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	var received Event
	if err := json.Unmarshal(gotBody, &received); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if received.Batch == nil {
		t.Fatal("batch.completed event missing batch summary")
	}
	if received.Batch.Items[0].TableID != "scout_full_MF" || received.Batch.Items[0].RowCount != 140 {
		t.Errorf("Items[0] = %+v, want table provenance preserved", received.Batch.Items[0])
	}
	if received.Batch.Items[1].Error != "BLOCKED" {
		t.Errorf("Items[1].Error = %q, want BLOCKED", received.Batch.Items[1].Error)
	}
}

func TestDeliverUnsignedWhenNoSecret(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Scoutscrape-Signature")
	}))
	defer srv.Close()

	event := NewBatchCompleted("batch-abc123", &BatchInfo{Status: "completed"})
	if err := Deliver(context.Background(), srv.URL, "", event); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if gotSig != "" {
		t.Errorf("signature header = %q, want unset without a secret", gotSig)
	}
}

func TestDeliverRejectsEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	event := NewExtractFailed("batch-abc123", &ExtractionInfo{URL: "https://stats.example.com/p/1"})
	if err := Deliver(context.Background(), srv.URL, "", event); err == nil {
		t.Error("Deliver() succeeded against a 500 endpoint")
	}
}
