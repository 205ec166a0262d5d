package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/tarbouchdata/scoutscrape/config"
	"github.com/tarbouchdata/scoutscrape/engine"
	"github.com/tarbouchdata/scoutscrape/models"
	"golang.org/x/time/rate"
)

// Scraper owns one browser process and its page pool. One extraction run
// borrows one page for its whole lifetime; runs never share a page. It is
// safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	scraperCfg  config.ScraperConfig
	rules       ChallengeRules
	pacer       *rate.Limiter
	activePages atomic.Int32
	dispatcher  *engine.Dispatcher

	// Counters for the health endpoint. Challenges counts interstitials
	// flagged by the rules on any path, direct browser loads and engine
	// result validation alike.
	runsOK     atomic.Int64
	runsFailed atomic.Int64
	challenges atomic.Int64
}

// New launches a headless browser with automation fingerprints minimised and
// initialises the reusable page pool.
func New(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, challengeCfg config.ChallengeConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}
	if browserCfg.UserAgent != "" {
		l.Set(flags.Flag("user-agent"), browserCfg.UserAgent)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", browserCfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)

	pace := scraperCfg.PaceInterval
	if pace <= 0 {
		pace = time.Second
	}

	return &Scraper{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		rules:      RulesFromConfig(challengeCfg),
		pacer:      rate.NewLimiter(rate.Every(pace), 1),
	}, nil
}

// SetDispatcher sets the multi-engine dispatcher. When set, Fetch tries the
// escalation path (HTTP-first with browser fallback) before direct browser
// acquisition.
func (s *Scraper) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// ResultCheck adapts the challenge rules into the dispatcher's validation
// hook: engine output that looks like an interstitial is rejected with a
// BLOCKED error, so escalation and direct browser loads judge content by
// the same signatures.
func (s *Scraper) ResultCheck() engine.ResultCheck {
	return func(html string) error {
		if reason, challenged := s.rules.Detect(html); challenged {
			s.challenges.Add(1)
			return models.NewExtractError(models.ErrCodeBlocked, reason, nil)
		}
		return nil
	}
}

// Runs reports how many Fetch calls have succeeded and failed since start.
func (s *Scraper) Runs() (succeeded, failed int64) {
	return s.runsOK.Load(), s.runsFailed.Load()
}

// ChallengesDetected reports how many anti-automation interstitials the
// challenge rules have flagged since start.
func (s *Scraper) ChallengesDetected() int64 {
	return s.challenges.Load()
}

// RememberedDomains reports how many domains the dispatcher currently has a
// remembered winning engine for. Zero without a dispatcher.
func (s *Scraper) RememberedDomains() int {
	if s.dispatcher == nil {
		return 0
	}
	return s.dispatcher.RememberedDomains()
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process. Call this on
// every exit path to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}
