package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tarbouchdata/scoutscrape/analyze"
	"github.com/tarbouchdata/scoutscrape/api"
	"github.com/tarbouchdata/scoutscrape/cache"
	"github.com/tarbouchdata/scoutscrape/config"
	"github.com/tarbouchdata/scoutscrape/engine"
	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/pipeline"
	"github.com/tarbouchdata/scoutscrape/scraper"
	"github.com/tarbouchdata/scoutscrape/writer"
)

// Exit codes for scripted callers: each fatal failure kind gets its own.
const (
	exitOK            = 0
	exitError         = 1
	exitLoadTimeout   = 2
	exitBlocked       = 3
	exitTableNotFound = 4
)

func main() {
	var (
		serve = flag.Bool("serve", false, "run the HTTP API server instead of a one-shot extraction")

		targetURL = flag.String("url", "", "player page URL to extract")
		tables    = flag.String("table", "", "comma-separated table id variants to try (overrides -position)")
		position  = flag.String("position", "", "player position group: GK, DF, MF or FW")
		wait      = flag.Int("wait", 0, "per-attempt readiness wait in seconds")
		retries   = flag.Int("retries", 0, "re-navigation budget after the first attempt")
		timeout   = flag.Int("timeout", 0, "whole-run timeout in seconds")
		headless  = flag.Bool("headless", true, "run the browser headless")

		csvPath    = flag.String("csv", "", "write records to this CSV file")
		csvBOM     = flag.Bool("csv-bom", false, "prefix the CSV with a UTF-8 byte order mark")
		reportPath = flag.String("report", "", "write a Markdown scouting report to this file")

		name        = flag.String("name", "", "player name (used in comparison output)")
		compareURL  = flag.String("compare", "", "second player page URL for a head-to-head comparison")
		compareName = flag.String("compare-name", "", "second player name")
	)
	flag.Parse()

	cfg := config.Load()
	cfg.Browser.Headless = *headless
	initLogger(cfg.Log)

	if *serve {
		runServer(cfg)
		return
	}

	if *targetURL == "" {
		fmt.Fprintln(os.Stderr, "usage: scoutscrape -url <player page> [flags], or scoutscrape -serve")
		flag.PrintDefaults()
		os.Exit(exitError)
	}

	os.Exit(runOnce(cfg, cliRequest(*targetURL, *tables, *position, *wait, *retries, *timeout),
		*csvPath, *csvBOM, *reportPath, *name, *compareURL, *compareName))
}

// cliRequest builds an ExtractRequest from CLI flags.
func cliRequest(url, tables, position string, wait, retries, timeout int) *models.ExtractRequest {
	req := &models.ExtractRequest{
		URL:      url,
		Position: position,
		WaitTime: wait,
		Retries:  retries,
		Timeout:  timeout,
	}
	if tables != "" {
		for _, id := range strings.Split(tables, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				req.TableIDs = append(req.TableIDs, trimmed)
			}
		}
	}
	req.Defaults()
	return req
}

// runOnce performs a one-shot extraction (optionally two, for comparison) and
// writes the requested artifacts.
func runOnce(cfg *config.Config, req *models.ExtractRequest, csvPath string, csvBOM bool, reportPath, name, compareURL, compareName string) int {
	sc, err := newScraper(cfg)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		return exitError
	}
	defer sc.Close()

	p := pipeline.New(sc)
	ctx := context.Background()

	res, err := p.Run(ctx, req)
	if err != nil {
		return reportFailure(err)
	}

	if compareURL != "" {
		cmpReq := &models.ExtractRequest{
			URL:      compareURL,
			WaitTime: req.WaitTime,
			Retries:  req.Retries,
			Timeout:  req.Timeout,
		}
		cmpReq.Defaults()

		cmpRes, cmpErr := p.Run(ctx, cmpReq)
		if cmpErr != nil {
			return reportFailure(cmpErr)
		}
		printComparison(name, res, compareName, cmpRes)
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			slog.Error("failed to encode result", "error", encErr)
			return exitError
		}
	}

	if csvPath != "" {
		path := resolveOutput(cfg.Output.Dir, csvPath)
		if err := writer.SaveCSV(path, res, csvBOM); err != nil {
			slog.Error("failed to write CSV", "path", path, "error", err)
			return exitError
		}
		slog.Info("CSV written", "path", path, "rows", res.Meta.RowCount)
	}

	if reportPath != "" {
		md, mdErr := writer.Report(res)
		if mdErr != nil {
			slog.Error("failed to render report", "error", mdErr)
			return exitError
		}
		path := resolveOutput(cfg.Output.Dir, reportPath)
		if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
			slog.Error("failed to write report", "path", path, "error", err)
			return exitError
		}
		slog.Info("report written", "path", path)
	}

	return exitOK
}

// printComparison renders a head-to-head to stdout.
func printComparison(nameA string, resA *models.Result, nameB string, resB *models.Result) {
	if nameA == "" {
		nameA = "Player A"
	}
	if nameB == "" {
		nameB = "Player B"
	}

	a := analyze.New(nameA, resA)
	b := analyze.New(nameB, resB)

	stats := analyze.SelectStats(a, b, 10)
	cmp := analyze.Compare(a, b, stats)

	fmt.Printf("%s vs %s\n", cmp.PlayerA, cmp.PlayerB)
	fmt.Printf("confidence: %.2f vs %.2f (minutes-weighted)\n\n", cmp.ConfidenceA, cmp.ConfidenceB)
	for _, s := range cmp.Stats {
		marker := " "
		switch s.Winner {
		case 1:
			marker = "<"
		case 2:
			marker = ">"
		}
		fmt.Printf("  %-40s %8.2f %s %8.2f\n", s.Stat, s.A, marker, s.B)
	}
	fmt.Printf("\nwins: %s %d — %d %s\n", cmp.PlayerA, cmp.WinsA, cmp.WinsB, cmp.PlayerB)
}

// reportFailure logs a fatal extraction error and maps it to an exit code.
func reportFailure(err error) int {
	ee := models.AsExtractError(err)
	slog.Error("extraction failed", "code", ee.Code, "error", err)
	switch ee.Code {
	case models.ErrCodeLoadTimeout:
		return exitLoadTimeout
	case models.ErrCodeBlocked:
		return exitBlocked
	case models.ErrCodeTableNotFound:
		return exitTableNotFound
	default:
		return exitError
	}
}

// resolveOutput places relative artifact paths under the configured output
// directory, creating it on demand.
func resolveOutput(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path
	}
	return filepath.Join(dir, path)
}

// runServer starts the HTTP API with graceful shutdown.
func runServer(cfg *config.Config) {
	slog.Info("scoutscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	sc, err := newScraper(cfg)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	p := pipeline.New(sc)

	// Batch workers get their own browser each, so parallel extractions
	// never share cookie or profile state.
	factory := func() (*pipeline.Pipeline, func(), error) {
		worker, werr := newScraper(cfg)
		if werr != nil {
			return nil, nil, werr
		}
		return pipeline.New(worker), worker.Close, nil
	}

	cc := cache.New(cfg.Cache.MaxEntries)

	startTime := time.Now()
	router := api.NewRouter(sc, p, factory, cfg, cc, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("scoutscrape stopped")
}

// newScraper launches a browser-backed scraper and, when enabled, wires the
// multi-engine escalation dispatcher in front of it.
func newScraper(cfg *config.Config) (*scraper.Scraper, error) {
	sc, err := scraper.New(cfg.Browser, cfg.Scraper, cfg.Challenge)
	if err != nil {
		return nil, err
	}

	if cfg.Engine.EnableMultiEngine {
		// Rod callback: wraps the scraper's direct browser path (bypasses
		// the dispatcher). This closure avoids a circular import (engine/
		// never imports scraper/).
		rodFetch := func(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
			stealth := req.Stealth
			extractReq := &models.ExtractRequest{
				URL:     req.URL,
				Timeout: int(req.Timeout.Seconds()),
				Stealth: &stealth,
			}
			extractReq.Defaults()

			result, err := sc.FetchBrowser(ctx, extractReq)
			if err != nil {
				return nil, err
			}
			return &engine.FetchResult{
				HTML:       result.HTML,
				StatusCode: result.StatusCode,
				FinalURL:   result.FinalURL,
			}, nil
		}

		httpEngine := engine.NewHTTPEngine(cfg.Browser.UserAgent)
		rodEngine := engine.NewRodEngine(rodFetch, false)
		rodStealthEngine := engine.NewRodEngine(rodFetch, true)

		// Engines are validated against the same challenge rules as direct
		// browser loads; a body that looks like an interstitial loses.
		engines := []engine.Engine{httpEngine, rodEngine, rodStealthEngine}
		memory := engine.NewDomainMemory(24 * time.Hour)
		dispatcher := engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, sc.ResultCheck(), memory)

		sc.SetDispatcher(dispatcher)
		slog.Info("multi-engine dispatcher enabled",
			"engines", len(engines),
			"delays", cfg.Engine.EscalationDelays,
		)
	}

	return sc, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
