package engine

import (
	"context"
	"fmt"
)

// BrowserFetchFunc wraps the scraper's direct browser acquisition. It is
// injected from main to avoid a circular import (engine/ never imports
// scraper/).
type BrowserFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is a browser-based engine delegating to the rod scraper via a
// callback. forceStealth distinguishes the plain browser tier from the
// browser-with-stealth tier.
type RodEngine struct {
	fetchFunc    BrowserFetchFunc
	forceStealth bool
	name         string
}

// NewRodEngine creates a RodEngine.
func NewRodEngine(fetchFunc BrowserFetchFunc, forceStealth bool) *RodEngine {
	name := "rod"
	if forceStealth {
		name = "rod-stealth"
	}
	return &RodEngine{
		fetchFunc:    fetchFunc,
		forceStealth: forceStealth,
		name:         name,
	}
}

func (e *RodEngine) Name() string { return e.name }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.name)
	}

	// Clone the request so the caller's copy is never mutated.
	r := *req
	if e.forceStealth {
		r.Stealth = true
	}

	result, err := e.fetchFunc(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	result.EngineName = e.name
	return result, nil
}
