package models

import (
	"sync"
	"time"
)

// BatchPlayer is one target in a batch extraction job.
type BatchPlayer struct {
	Name     string `json:"name,omitempty"`
	URL      string `json:"url" binding:"required,url"`
	Position string `json:"position,omitempty" binding:"omitempty,oneof=GK DF MF FW"`
}

// BatchOptions are shared run settings applied to every player in a batch.
type BatchOptions struct {
	WaitTime int   `json:"wait_time,omitempty"`
	Retries  int   `json:"retries,omitempty"`
	Timeout  int   `json:"timeout,omitempty"`
	Stealth  *bool `json:"stealth,omitempty"`

	// Concurrency is the number of parallel extraction sessions. Each
	// parallel session owns an isolated browser instance so runs never
	// share cookie or profile state. Default: 1 (sequential).
	Concurrency int `json:"concurrency,omitempty" binding:"omitempty,min=1,max=8"`
}

// BatchRequest is the payload for POST /api/v1/batch/extract.
type BatchRequest struct {
	Players []BatchPlayer `json:"players" binding:"required,min=1,dive"`
	Options BatchOptions  `json:"options"`

	// WebhookURL, when set, receives a signed batch.completed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchJob tracks an in-flight or completed batch extraction. Worker
// goroutines report item completions while status requests read the job
// concurrently, so all mutable state sits behind the mutex; readers take a
// Snapshot rather than touching fields.
type BatchJob struct {
	mu        sync.Mutex
	id        string
	status    string // "processing", "completed", "partial", "failed"
	total     int
	completed int
	failed    int
	results   []*ExtractResponse
	createdAt time.Time
}

// NewBatchJob creates a processing job for n items.
func NewBatchJob(id string, n int) *BatchJob {
	return &BatchJob{
		id:        id,
		status:    "processing",
		total:     n,
		results:   make([]*ExtractResponse, n),
		createdAt: time.Now(),
	}
}

func (j *BatchJob) ID() string { return j.id }

// CreatedBefore reports whether the job predates t; used by store expiry.
func (j *BatchJob) CreatedBefore(t time.Time) bool { return j.createdAt.Before(t) }

// ItemDone records one finished item at its input position.
func (j *BatchJob) ItemDone(index int, resp *ExtractResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[index] = resp
	j.completed++
	if !resp.Success {
		j.failed++
	}
}

// Finish derives the terminal status from the per-item outcomes.
func (j *BatchJob) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.failed == j.total:
		j.status = "failed"
	case j.failed > 0:
		j.status = "partial"
	default:
		j.status = "completed"
	}
}

// Snapshot returns a consistent copy of the job for API responses. The
// results slice is copied so callers can serialize it without holding the
// job's lock.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ExtractResponse, len(j.results))
	copy(results, j.results)
	return BatchStatusResponse{
		ID:        j.id,
		Status:    j.status,
		Completed: j.completed,
		Failed:    j.failed,
		Total:     j.total,
		Results:   results,
	}
}

// BatchResponse acknowledges batch creation.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the payload for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
	Total     int                `json:"total"`
	Results   []*ExtractResponse `json:"results"`
}
