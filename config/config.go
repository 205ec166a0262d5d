package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Challenge ChallengeConfig
	Engine    EngineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Output    OutputConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP API server (serve mode only).
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. Turning it off
	// is occasionally useful when the challenge heuristics need tuning.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// UserAgent is the identification string presented to the site.
	UserAgent string

	// DefaultProxy is the proxy URL for all navigation.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls page acquisition behavior.
type ScraperConfig struct {
	// DefaultWait is the per-attempt readiness wait.
	DefaultWait time.Duration // default: 10s

	// MaxTimeout is the maximum allowed whole-run timeout from a client.
	MaxTimeout time.Duration // default: 300s

	// ReadySelector is the DOM landmark polled for after navigation.
	// The page counts as rendered once document.readyState is complete
	// and this selector matches.
	ReadySelector string // default: "#content"

	// BackoffBase is the first retry delay; each retry doubles it, with
	// random jitter, up to BackoffMax.
	BackoffBase time.Duration // default: 2s
	BackoffMax  time.Duration // default: 30s

	// PaceInterval is the minimum spacing between navigations, shared
	// across the whole browser instance. Human-like pacing keeps the
	// anti-automation heuristics on the far side quiet.
	PaceInterval time.Duration // default: 3s

	// BlockedResourceTypes lists resource types never fetched.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// DumpDir, when non-empty, receives the last fetched markup whenever
	// acquisition fails, for post-mortem inspection.
	DumpDir string
}

// ChallengeConfig is the challenge-page detection rule set. The signatures
// drift with the site's defenses, so they are configuration, not code.
type ChallengeConfig struct {
	// Markers are substrings (case-insensitive) whose presence marks a
	// challenge interstitial.
	Markers []string

	// MinBytes is the smallest document size a real page can have.
	MinBytes int // default: 2048

	// RequireTable treats a document without any <table> element as a
	// challenge response. Every page in the target template family
	// carries at least one table.
	RequireTable bool // default: true
}

// EngineConfig controls the multi-engine escalation dispatcher.
type EngineConfig struct {
	// EnableMultiEngine toggles HTTP-first fetching with browser fallback.
	EnableMultiEngine bool // default: true

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s
}

// AuthConfig controls API key authentication (serve mode).
type AuthConfig struct {
	Enabled bool // default: false
	APIKeys []string
}

// RateLimitConfig controls per-key API rate limiting (serve mode).
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 2
	Burst             int     // default: 5
}

// CacheConfig controls the extraction result cache.
type CacheConfig struct {
	MaxEntries int // default: 500
}

// OutputConfig controls file artifacts.
type OutputConfig struct {
	// Dir is where CSV/report artifacts are written by the CLI.
	Dir string // default: "./scoutscrape_output"
}

// WebhookConfig controls event notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// defaultChallengeMarkers are the interstitial signatures observed on the
// target site's Cloudflare front as of this writing.
var defaultChallengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cf-browser-verification",
	"challenge-platform",
	"attention required",
	"enable javascript and cookies to continue",
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("SCOUT_PORT", 8080),
			Mode: envOr("SCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SCOUT_HEADLESS", true),
			MaxPages:     envIntOr("SCOUT_MAX_PAGES", 4),
			UserAgent:    envOr("SCOUT_USER_AGENT", defaultUserAgent),
			DefaultProxy: os.Getenv("SCOUT_PROXY"),
			NoSandbox:    envBoolOr("SCOUT_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SCOUT_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultWait:   envDurationOr("SCOUT_DEFAULT_WAIT", 10*time.Second),
			MaxTimeout:    envDurationOr("SCOUT_MAX_TIMEOUT", 300*time.Second),
			ReadySelector: envOr("SCOUT_READY_SELECTOR", "#content"),
			BackoffBase:   envDurationOr("SCOUT_BACKOFF_BASE", 2*time.Second),
			BackoffMax:    envDurationOr("SCOUT_BACKOFF_MAX", 30*time.Second),
			PaceInterval:  envDurationOr("SCOUT_PACE_INTERVAL", 3*time.Second),
			BlockedResourceTypes: envSliceOr("SCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			DumpDir: os.Getenv("SCOUT_DUMP_DIR"),
		},
		Challenge: ChallengeConfig{
			Markers:      envSliceOr("SCOUT_CHALLENGE_MARKERS", defaultChallengeMarkers),
			MinBytes:     envIntOr("SCOUT_CHALLENGE_MIN_BYTES", 2048),
			RequireTable: envBoolOr("SCOUT_CHALLENGE_REQUIRE_TABLE", true),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("SCOUT_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("SCOUT_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			HTTPTimeout:       envDurationOr("SCOUT_HTTP_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCOUT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCOUT_RATE_RPS", 2.0),
			Burst:             envIntOr("SCOUT_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SCOUT_CACHE_MAX_ENTRIES", 500),
		},
		Output: OutputConfig{
			Dir: envOr("SCOUT_OUTPUT_DIR", "./scoutscrape_output"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("SCOUT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SCOUT_LOG_LEVEL", "info"),
			Format: envOr("SCOUT_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
