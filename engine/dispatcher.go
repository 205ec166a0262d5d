package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher coordinates multi-engine fetching with staged escalation: the
// cheapest engine starts first and heavier ones join after their delay, so a
// fast HTTP win cancels the browser tiers before they spend a tab.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	check            ResultCheck
	memory           *DomainMemory
}

// NewDispatcher creates a Dispatcher. engines[i] starts after
// escalationDelays[i] from the race beginning; the first delay should be 0.
// check may be nil, in which case any non-error result wins.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, check ResultCheck, memory *DomainMemory) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		check:            check,
		memory:           memory,
	}
}

// RememberedDomains reports the size of the per-domain engine memory.
func (d *Dispatcher) RememberedDomains() int {
	if d.memory == nil {
		return 0
	}
	return d.memory.Len()
}

// Dispatch runs the engine race and returns the first result that passes the
// check. If every engine fails, the last error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	domain := hostOf(req.URL)

	// A domain that already beat the site's defenses with one engine very
	// likely will again; try that engine alone before racing.
	if remembered := d.memory.Get(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			result, err := d.fetchChecked(ctx, eng, req)
			if err == nil {
				return result, nil
			}
			slog.Info("remembered engine failed, running full escalation",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Forget(domain)
			break
		}
	}

	return d.race(ctx, req, domain)
}

// fetchChecked runs one engine and validates its output.
func (d *Dispatcher) fetchChecked(ctx context.Context, eng Engine, req *FetchRequest) (*FetchResult, error) {
	result, err := eng.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if d.check != nil {
		if checkErr := d.check(result.HTML); checkErr != nil {
			return nil, fmt.Errorf("%s: rejected: %w", eng.Name(), checkErr)
		}
	}
	return result, nil
}

// race starts all engines with their staged delays and returns the first
// checked success.
func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		delay := d.escalationDelays[i]
		wg.Add(1)
		go func(e Engine, startAfter time.Duration) {
			defer wg.Done()

			if startAfter > 0 {
				select {
				case <-raceCtx.Done():
					return
				case <-time.After(startAfter):
				}
			}
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := d.fetchChecked(raceCtx, e, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, delay)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		raceCancel()
		slog.Info("engine won escalation", "engine", rr.result.EngineName, "url", req.URL)
		d.memory.Remember(domain, rr.result.EngineName)
		return rr.result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// hostOf parses the hostname from a URL string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
