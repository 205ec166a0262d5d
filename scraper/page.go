package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/tarbouchdata/scoutscrape/engine"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/ysmood/gson"
)

// acquireState models one run's page acquisition as an explicit state
// machine. Transition counts are bounded by the retry budget, so a run can
// never loop forever between navigation and challenge detection.
type acquireState int

const (
	stateNavigating acquireState = iota
	stateAwaitingReady
	stateChallengeDetected
	stateSucceeded
	stateFailedTerminal
)

// errNotReady marks a navigation whose readiness signal never appeared
// within the per-attempt wait. Recoverable until the budget runs out.
var errNotReady = errors.New("page readiness signal did not appear")

// readyPollInterval is how often the readiness landmark is polled after
// navigation. Polling tolerates variable render latency better than a fixed
// sleep: fast loads return early, slow ones get the full wait.
const readyPollInterval = 250 * time.Millisecond

// navigator is the slice of page behavior the acquisition state machine
// needs. *rod.Page satisfies it through rodNavigator; substituting a
// scripted implementation lets the retry budget and failure classification
// be exercised without a browser.
type navigator interface {
	Navigate(url string) error
	HTML() (string, error)
	EvalBool(js string) bool
	EvalString(js string) string
	EvalInt(js string) int
}

// rodNavigator adapts a *rod.Page to the navigator interface, swallowing
// eval errors the way the optional-metadata reads always have.
type rodNavigator struct {
	p *rod.Page
}

func (n rodNavigator) Navigate(url string) error { return n.p.Navigate(url) }
func (n rodNavigator) HTML() (string, error)     { return n.p.HTML() }

func (n rodNavigator) EvalBool(js string) bool {
	res, err := n.p.Eval(js)
	return err == nil && res.Value.Bool()
}

func (n rodNavigator) EvalString(js string) string {
	res, err := n.p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (n rodNavigator) EvalInt(js string) int {
	res, err := n.p.Eval(js)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// Fetch acquires the fully rendered markup for one extraction run and keeps
// the success/failure counters that back the health endpoint.
func (s *Scraper) Fetch(ctx context.Context, req *models.ExtractRequest) (*FetchResult, error) {
	result, err := s.fetch(ctx, req)
	if err != nil {
		s.runsFailed.Add(1)
		return nil, err
	}
	s.runsOK.Add(1)
	return result, nil
}

// fetch runs the acquisition strategy.
//
// When the multi-engine dispatcher is configured, it gets the first try: the
// HTTP engine with a Chrome TLS fingerprint often gets real content in a
// fraction of a browser's time. A dispatcher result still passes through the
// challenge rules; if it looks like an interstitial, the direct browser path
// takes over. One exception: when every tier failed because of a challenge,
// the browser tiers already spent their shot at the same interstitial, so a
// direct browser pass would only double the wall time before the same
// BLOCKED verdict.
func (s *Scraper) fetch(ctx context.Context, req *models.ExtractRequest) (*FetchResult, error) {
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.dispatcher != nil {
		fetchReq := &engine.FetchRequest{
			URL:     req.URL,
			Timeout: timeout,
			Stealth: req.Stealth != nil && *req.Stealth,
		}
		result, err := s.dispatcher.Dispatch(ctx, fetchReq)
		if err == nil {
			return &FetchResult{
				HTML:       result.HTML,
				FinalURL:   result.FinalURL,
				StatusCode: result.StatusCode,
				Attempts:   1,
				EngineUsed: result.EngineName,
			}, nil
		}

		var ee *models.ExtractError
		if errors.As(err, &ee) && ee.Code == models.ErrCodeBlocked {
			return nil, models.NewExtractError(
				models.ErrCodeBlocked,
				"anti-automation challenge persisted across every engine tier",
				err,
			)
		}
		slog.Warn("dispatcher exhausted, falling back to direct browser acquisition",
			"url", req.URL, "error", err)
	}

	return s.fetchBrowser(ctx, req)
}

// FetchBrowser acquires markup through the browser path only, bypassing the
// dispatcher. The dispatcher's browser tiers are built on this, so engine
// escalation and direct acquisition share the same page pool and pacing.
func (s *Scraper) FetchBrowser(ctx context.Context, req *models.ExtractRequest) (*FetchResult, error) {
	return s.fetchBrowser(ctx, req)
}

// fetchBrowser is the direct browser acquisition path.
//
// Order matters: stealth JS and the resource-blocking router only affect
// navigations installed before them, and the cleanup defer uses the original
// page reference so the tab returns to the pool even after the run context
// expires.
func (s *Scraper) fetchBrowser(ctx context.Context, req *models.ExtractRequest) (*FetchResult, error) {
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	if req.Stealth != nil && *req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// A Google-search referer makes the first visit look like an organic
	// arrival instead of a direct automated hit.
	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		referer := "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		setErr := proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{"Referer": gson.New(referer)},
		}.Call(page)
		if setErr != nil {
			slog.Warn("could not set referer header", "error", setErr)
		}
	}

	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	return s.acquire(ctx, rodNavigator{p: p}, req)
}

// acquire runs the acquisition state machine on an already prepared page.
//
//	Navigating → AwaitingReady → Succeeded
//	                │    │
//	                │    └─ ChallengeDetected ─┐
//	                └─ (timeout/nav error) ────┤
//	                                           ↓
//	                  back to Navigating, or FailedTerminal
//	                  once the retry budget is spent
func (s *Scraper) acquire(ctx context.Context, nav navigator, req *models.ExtractRequest) (*FetchResult, error) {
	wait := time.Duration(req.WaitTime) * time.Second
	if wait <= 0 {
		wait = s.scraperCfg.DefaultWait
	}

	var (
		state            = stateNavigating
		attempts         = 0
		html             string
		lastErr          error
		lastWasChallenge bool
	)

	for {
		switch state {
		case stateNavigating:
			if attempts > req.Retries {
				state = stateFailedTerminal
				continue
			}
			if attempts > 0 {
				if err := s.sleepBackoff(ctx, attempts); err != nil {
					lastErr = err
					state = stateFailedTerminal
					continue
				}
			}
			if err := s.pacer.Wait(ctx); err != nil {
				lastErr = err
				state = stateFailedTerminal
				continue
			}
			attempts++
			if err := nav.Navigate(req.URL); err != nil {
				lastErr = err
				lastWasChallenge = false
				slog.Warn("navigation failed", "url", req.URL, "attempt", attempts, "error", err)
				if ctx.Err() != nil {
					state = stateFailedTerminal
				}
				continue
			}
			state = stateAwaitingReady

		case stateAwaitingReady:
			if err := s.pollReady(ctx, nav, wait); err != nil {
				lastErr = err
				lastWasChallenge = false
				slog.Warn("page never became ready", "url", req.URL, "attempt", attempts, "wait", wait)
				state = stateNavigating
				if ctx.Err() != nil {
					state = stateFailedTerminal
				}
				continue
			}
			var htmlErr error
			html, htmlErr = nav.HTML()
			if htmlErr != nil {
				lastErr = htmlErr
				lastWasChallenge = false
				state = stateNavigating
				continue
			}
			if reason, challenged := s.rules.Detect(html); challenged {
				slog.Warn("challenge page detected", "url", req.URL, "attempt", attempts, "reason", reason)
				s.challenges.Add(1)
				lastWasChallenge = true
				state = stateChallengeDetected
				continue
			}
			state = stateSucceeded

		case stateChallengeDetected:
			// Recoverable: go around with adjusted timing. The backoff
			// in stateNavigating provides the adjustment.
			state = stateNavigating

		case stateSucceeded:
			finalURL := nav.EvalString(`() => window.location.href`)
			if finalURL == "" {
				finalURL = req.URL
			}
			return &FetchResult{
				HTML:       html,
				FinalURL:   finalURL,
				StatusCode: navigationStatus(nav),
				Attempts:   attempts,
				EngineUsed: "browser",
			}, nil

		case stateFailedTerminal:
			s.dumpMarkup(req.URL, html)
			return nil, s.terminalError(req, attempts, lastErr, lastWasChallenge)
		}
	}
}

// terminalError maps the final failure to the right error kind. A persistent
// challenge is BLOCKED, not LOAD_TIMEOUT: the page rendered fine, the site
// just refused to serve real content. Different root cause, surfaced
// separately.
func (s *Scraper) terminalError(req *models.ExtractRequest, attempts int, lastErr error, lastWasChallenge bool) error {
	switch {
	case lastWasChallenge:
		return models.NewExtractError(
			models.ErrCodeBlocked,
			fmt.Sprintf("anti-automation challenge persisted across %d attempts", attempts),
			lastErr,
		)
	case errors.Is(lastErr, errNotReady):
		return models.NewExtractError(
			models.ErrCodeLoadTimeout,
			fmt.Sprintf("page never became ready within %ds after %d attempts", req.WaitTime, attempts),
			lastErr,
		)
	case errors.Is(lastErr, context.DeadlineExceeded):
		return models.NewExtractError(
			models.ErrCodeLoadTimeout,
			fmt.Sprintf("run deadline exceeded after %d attempts", attempts),
			lastErr,
		)
	default:
		return models.NewExtractError(
			models.ErrCodeNavigation,
			fmt.Sprintf("navigation to target URL failed after %d attempts", attempts),
			lastErr,
		)
	}
}

// pollReady waits for the readiness signal: document fully loaded and the
// configured DOM landmark present. Returns errNotReady when the wait elapses.
func (s *Scraper) pollReady(ctx context.Context, nav navigator, wait time.Duration) error {
	js := fmt.Sprintf(
		`() => document.readyState === "complete" && document.querySelector(%q) !== null`,
		s.scraperCfg.ReadySelector,
	)

	deadline := time.Now().Add(wait)
	for {
		if nav.EvalBool(js) {
			return nil
		}
		if time.Now().After(deadline) {
			return errNotReady
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

// backoffDelay computes the pause before retry attempt n (1-based):
// exponential growth capped at BackoffMax, jittered into [delay/2, delay]
// so retries never land on a metronome the far side's heuristics could
// key on.
func (s *Scraper) backoffDelay(attempt int) time.Duration {
	delay := s.scraperCfg.BackoffBase << (attempt - 1)
	if limit := s.scraperCfg.BackoffMax; delay > limit {
		delay = limit
	}
	return delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
}

func (s *Scraper) sleepBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.backoffDelay(attempt)):
		return nil
	}
}

// dumpMarkup persists the last fetched markup for post-mortem inspection.
// Best-effort: diagnostics must never turn a failed run into a crash.
func (s *Scraper) dumpMarkup(sourceURL, html string) {
	if s.scraperCfg.DumpDir == "" || html == "" {
		return
	}
	if err := os.MkdirAll(s.scraperCfg.DumpDir, 0o755); err != nil {
		slog.Warn("could not create dump dir", "dir", s.scraperCfg.DumpDir, "error", err)
		return
	}
	path := filepath.Join(s.scraperCfg.DumpDir, "last_fetch.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		slog.Warn("could not write markup dump", "path", path, "error", err)
		return
	}
	slog.Info("raw markup dumped for diagnosis", "path", path, "url", sourceURL)
}

// navigationStatus reads the HTTP status of the last navigation from the
// performance timeline; no CDP event listeners needed.
func navigationStatus(nav navigator) int {
	return nav.EvalInt(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
}
