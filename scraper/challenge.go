package scraper

import (
	"fmt"
	"strings"

	"github.com/tarbouchdata/scoutscrape/config"
)

// ChallengeRules decides whether a fetched document is a real page or an
// anti-automation interstitial. The rule data lives in configuration because
// the site's signatures drift; only the evaluation lives here.
type ChallengeRules struct {
	markers      []string
	minBytes     int
	requireTable bool
}

// RulesFromConfig builds ChallengeRules, lowercasing markers once so Detect
// can match case-insensitively without re-allocating.
func RulesFromConfig(cfg config.ChallengeConfig) ChallengeRules {
	markers := make([]string, 0, len(cfg.Markers))
	for _, m := range cfg.Markers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, strings.ToLower(m))
		}
	}
	return ChallengeRules{
		markers:      markers,
		minBytes:     cfg.MinBytes,
		requireTable: cfg.RequireTable,
	}
}

// Detect reports whether the document looks like a challenge response, with a
// human-readable reason for the log. A challenge is a recoverable condition:
// the caller retries with adjusted timing instead of failing outright.
func (r ChallengeRules) Detect(html string) (string, bool) {
	if len(html) < r.minBytes {
		return fmt.Sprintf("document too small (%d bytes < %d)", len(html), r.minBytes), true
	}

	lower := strings.ToLower(html)
	for _, marker := range r.markers {
		if strings.Contains(lower, marker) {
			return fmt.Sprintf("challenge marker %q present", marker), true
		}
	}

	if r.requireTable && !strings.Contains(lower, "<table") {
		return "no table elements in document", true
	}

	return "", false
}
