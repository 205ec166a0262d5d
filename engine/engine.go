package engine

import (
	"context"
	"time"
)

// Engine is one way of getting a page's markup. Engines are ordered by cost:
// plain HTTP, browser, browser with stealth.
type Engine interface {
	// Name returns the engine identifier ("http", "rod", "rod-stealth").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	Stealth bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}

// ResultCheck validates an engine's output before it is allowed to win.
// The dispatcher uses it to reject challenge interstitials: a body that
// looks like one counts as an engine failure, so escalation continues.
type ResultCheck func(html string) error
