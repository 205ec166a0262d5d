package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	TypeBatchCompleted = "batch.completed"
	TypeExtractFailed  = "extract.failed"
)

// Event is the payload sent to webhook endpoints. Exactly one of Extraction
// or Batch is set, matching Type.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`

	// Extraction carries the failed run on extract.failed events.
	Extraction *ExtractionInfo `json:"extraction,omitempty"`

	// Batch summarizes the finished job on batch.completed events.
	Batch *BatchInfo `json:"batch,omitempty"`
}

// ExtractionInfo identifies one failed extraction run.
type ExtractionInfo struct {
	URL     string `json:"url"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchInfo summarizes a finished batch job, item by item, with enough
// provenance (matched table, row counts) that the receiver can decide what
// to re-queue without polling the status endpoint.
type BatchInfo struct {
	Status    string      `json:"status"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// BatchItem is the outcome of one player URL within a batch.
type BatchItem struct {
	URL      string `json:"url"`
	OK       bool   `json:"ok"`
	TableID  string `json:"table_id,omitempty"`
	RowCount int    `json:"row_count,omitempty"`
	Error    string `json:"error,omitempty"` // error code on failure
}

// NewExtractFailed builds an extract.failed event.
func NewExtractFailed(jobID string, info *ExtractionInfo) *Event {
	return &Event{
		Type:       TypeExtractFailed,
		JobID:      jobID,
		Timestamp:  time.Now().Unix(),
		Extraction: info,
	}
}

// NewBatchCompleted builds a batch.completed event.
func NewBatchCompleted(jobID string, info *BatchInfo) *Event {
	return &Event{
		Type:      TypeBatchCompleted,
		JobID:     jobID,
		Timestamp: time.Now().Unix(),
		Batch:     info,
	}
}

// sign computes the hex HMAC-SHA256 of body under secret.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
// Header: X-Scoutscrape-Signature: sha256=<hex>
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Scoutscrape-Webhook/1.0")

	if secret != "" {
		req.Header.Set("X-Scoutscrape-Signature", "sha256="+sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event asynchronously with up to 3 retries.
// Retry intervals: 1s, 5s, 30s.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}
