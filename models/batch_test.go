package models

import (
	"sync"
	"testing"
	"time"
)

func TestBatchJobConcurrentProgress(t *testing.T) {
	const n = 64
	job := NewBatchJob("batch-test", n)

	// Workers report completions while a poller snapshots continuously,
	// the same interleaving the status endpoint sees mid-batch.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			snap := job.Snapshot()
			if snap.Completed > snap.Total {
				t.Errorf("snapshot completed %d exceeds total %d", snap.Completed, snap.Total)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ok := idx%4 != 0
			resp := &ExtractResponse{Success: ok}
			if !ok {
				resp.Error = &ErrorDetail{Code: ErrCodeBlocked, Message: "challenge persisted"}
			}
			job.ItemDone(idx, resp)
		}(i)
	}
	wg.Wait()
	<-done

	job.Finish()
	snap := job.Snapshot()
	if snap.Completed != n {
		t.Errorf("Completed = %d, want %d", snap.Completed, n)
	}
	if want := n / 4; snap.Failed != want {
		t.Errorf("Failed = %d, want %d", snap.Failed, want)
	}
	if snap.Status != "partial" {
		t.Errorf("Status = %q, want partial", snap.Status)
	}
	for i, r := range snap.Results {
		if r == nil {
			t.Fatalf("Results[%d] is nil after all items reported", i)
		}
	}
}

func TestBatchJobStatusDerivation(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []bool
		want     string
	}{
		{"all succeeded", []bool{true, true, true}, "completed"},
		{"some failed", []bool{true, false, true}, "partial"},
		{"all failed", []bool{false, false}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewBatchJob("batch-test", len(tt.outcomes))
			for i, ok := range tt.outcomes {
				job.ItemDone(i, &ExtractResponse{Success: ok})
			}
			job.Finish()
			if got := job.Snapshot().Status; got != tt.want {
				t.Errorf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBatchJobSnapshotIsolation(t *testing.T) {
	job := NewBatchJob("batch-test", 2)
	job.ItemDone(0, &ExtractResponse{Success: true})

	snap := job.Snapshot()
	snap.Results[1] = &ExtractResponse{Success: false}

	if job.Snapshot().Results[1] != nil {
		t.Error("mutating a snapshot's results leaked into the job")
	}
}

func TestBatchJobCreatedBefore(t *testing.T) {
	job := NewBatchJob("batch-test", 1)
	if job.CreatedBefore(time.Now().Add(-time.Hour)) {
		t.Error("fresh job reported as older than an hour")
	}
	if !job.CreatedBefore(time.Now().Add(time.Hour)) {
		t.Error("job not reported as created before a future cutoff")
	}
}
