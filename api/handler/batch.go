package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/config"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/pipeline"
	"github.com/tarbouchdata/scoutscrape/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour)
			batchStore.Range(func(key, value any) bool {
				if value.(*models.BatchJob).CreatedBefore(cutoff) {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/extract.
// It validates the request, creates a batch job, and launches the batch in
// the background with isolated browser sessions per worker.
func PostBatch(factory pipeline.SessionFactory, whCfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		if len(req.Players) > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "maximum 100 players per batch",
				},
			})
			return
		}

		job := models.NewBatchJob("batch-"+randomID(), len(req.Players))
		batchStore.Store(job.ID(), job)

		go runBatchJob(factory, job, req, whCfg)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     job.ID(),
			Status: "processing",
			Total:  len(req.Players),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		c.JSON(http.StatusOK, val.(*models.BatchJob).Snapshot())
	}
}

// runBatchJob drives one batch to completion and optionally notifies the
// caller's webhook. Per-item progress is recorded through the job's
// synchronized accessors as workers finish, so status polls see live counts.
func runBatchJob(factory pipeline.SessionFactory, job *models.BatchJob, req models.BatchRequest, whCfg config.WebhookConfig) {
	reqs := make([]*models.ExtractRequest, len(req.Players))
	for i, pl := range req.Players {
		r := &models.ExtractRequest{
			URL:      pl.URL,
			Position: pl.Position,
			WaitTime: req.Options.WaitTime,
			Retries:  req.Options.Retries,
			Timeout:  req.Options.Timeout,
			Stealth:  req.Options.Stealth,
		}
		r.Defaults()
		reqs[i] = r
	}

	concurrency := req.Options.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	start := time.Now()

	items := pipeline.RunBatch(context.Background(), factory, reqs, concurrency, func(item pipeline.ItemResult) {
		job.ItemDone(item.Index, itemResponse(item))

		if item.Err != nil && req.WebhookURL != "" {
			ee := models.AsExtractError(item.Err)
			webhook.DeliverAsync(req.WebhookURL, whCfg.Secret,
				webhook.NewExtractFailed(job.ID(), &webhook.ExtractionInfo{
					URL:     reqs[item.Index].URL,
					Code:    ee.Code,
					Message: ee.Message,
				}))
		}
	})

	job.Finish()
	snap := job.Snapshot()

	slog.Info("batch job finished",
		"id", snap.ID,
		"status", snap.Status,
		"succeeded", snap.Completed-snap.Failed,
		"failed", snap.Failed,
		"total", snap.Total,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if req.WebhookURL != "" {
		info := &webhook.BatchInfo{
			Status:    snap.Status,
			Total:     snap.Total,
			Completed: snap.Completed,
			Failed:    snap.Failed,
			Items:     make([]webhook.BatchItem, 0, len(items)),
		}
		for _, item := range items {
			bi := webhook.BatchItem{URL: reqs[item.Index].URL, OK: item.Err == nil}
			if item.Err != nil {
				bi.Error = models.AsExtractError(item.Err).Code
			} else {
				bi.TableID = item.Result.Meta.TableID
				bi.RowCount = item.Result.Meta.RowCount
			}
			info.Items = append(info.Items, bi)
		}
		webhook.DeliverAsync(req.WebhookURL, whCfg.Secret,
			webhook.NewBatchCompleted(job.ID(), info))
	}
}

// itemResponse converts one batch item outcome to the API response shape.
func itemResponse(item pipeline.ItemResult) *models.ExtractResponse {
	if item.Err != nil {
		return &models.ExtractResponse{
			Success: false,
			Error:   models.AsExtractError(item.Err).ToDetail(),
		}
	}
	return &models.ExtractResponse{
		Success: true,
		Result:  item.Result,
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
