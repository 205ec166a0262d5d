package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tarbouchdata/scoutscrape/models"
)

// SessionFactory produces an isolated extraction session: a Pipeline backed
// by its own browser instance, plus its teardown. Parallel batch workers
// each call the factory once, so concurrent runs never share cookie or
// profile state. Shared state would let the far side correlate the sessions.
type SessionFactory func() (*Pipeline, func(), error)

// ItemResult is the outcome for one player in a batch.
type ItemResult struct {
	Index  int
	Result *models.Result
	Err    error
}

// RunBatch extracts every request with at most `concurrency` parallel
// sessions. Order of the returned slice matches the input order. Individual
// failures are recorded per item; the batch itself always completes.
// onItem, if non-nil, is called once per finished item (from worker
// goroutines, so it must be safe for concurrent use).
func RunBatch(ctx context.Context, factory SessionFactory, reqs []*models.ExtractRequest, concurrency int, onItem func(ItemResult)) []ItemResult {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(reqs) {
		concurrency = len(reqs)
	}

	results := make([]ItemResult, len(reqs))
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			p, teardown, err := factory()
			if err != nil {
				// Without a session this worker can only fail its share.
				for idx := range work {
					results[idx] = ItemResult{Index: idx, Err: err}
					if onItem != nil {
						onItem(results[idx])
					}
				}
				return
			}
			defer teardown()

			for idx := range work {
				res, runErr := p.Run(ctx, reqs[idx])
				results[idx] = ItemResult{Index: idx, Result: res, Err: runErr}
				if runErr != nil {
					slog.Warn("batch item failed", "index", idx, "url", reqs[idx].URL, "error", runErr)
				}
				if onItem != nil {
					onItem(results[idx])
				}
			}
		}()
	}

	for i := range reqs {
		work <- i
	}
	close(work)
	wg.Wait()

	return results
}
