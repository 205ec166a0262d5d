// Package pipeline wires acquisition, table location, extraction, and
// normalization into one extraction run.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarbouchdata/scoutscrape/models"
	"github.com/tarbouchdata/scoutscrape/normalize"
	"github.com/tarbouchdata/scoutscrape/scraper"
	"github.com/tarbouchdata/scoutscrape/table"
)

// Fetcher acquires rendered markup for a run. *scraper.Scraper is the
// production implementation; tests substitute static markup.
type Fetcher interface {
	Fetch(ctx context.Context, req *models.ExtractRequest) (*scraper.FetchResult, error)
}

// Pipeline runs extractions against one fetcher.
type Pipeline struct {
	fetcher Fetcher
}

// New creates a Pipeline.
func New(f Fetcher) *Pipeline {
	return &Pipeline{fetcher: f}
}

// Run executes one extraction: acquire → locate → extract → normalize.
//
// The contract is all-or-nothing: a fatal failure (LOAD_TIMEOUT, BLOCKED,
// NAVIGATION_FAILED, TABLE_NOT_FOUND) returns no Result at all, while
// per-row and per-cell anomalies are absorbed into the Result's metadata.
func (p *Pipeline) Run(ctx context.Context, req *models.ExtractRequest) (*models.Result, error) {
	req.Defaults()

	fetched, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	return Process(fetched, req)
}

// Fetch exposes the pipeline's fetcher so callers can time acquisition and
// extraction separately.
func (p *Pipeline) Fetch(ctx context.Context, req *models.ExtractRequest) (*scraper.FetchResult, error) {
	req.Defaults()
	return p.fetcher.Fetch(ctx, req)
}

// Process runs the extraction half of the pipeline on already-acquired
// markup: locate → extract → normalize.
func Process(fetched *scraper.FetchResult, req *models.ExtractRequest) (*models.Result, error) {
	loc, err := table.Locate(fetched.HTML, req.TableIDs)
	if err != nil {
		return nil, err
	}
	slog.Info("table located",
		"url", req.URL,
		"table_id", loc.ID,
		"from_comment", loc.FromComment,
	)

	raw := table.Extract(loc)

	position := normalize.PositionFromTableID(loc.ID)
	if position == "" {
		position = req.Position
	}
	schema := normalize.ForPosition(position)

	records, malformed := normalize.Records(raw, schema)
	if malformed > 0 {
		slog.Warn("malformed cells recorded as missing", "url", req.URL, "count", malformed)
	}

	return &models.Result{
		Records: records,
		Meta: models.Metadata{
			SourceURL:      req.URL,
			TableID:        loc.ID,
			Position:       schema.Position,
			ScrapedAt:      time.Now().UTC(),
			RowCount:       len(records),
			MalformedCells: malformed,
			SkippedRows:    raw.SkippedRows,
			EngineUsed:     fetched.EngineUsed,
			Attempts:       fetched.Attempts,
		},
		TableHTML: loc.HTML,
	}, nil
}

// RunHTML extracts from already-acquired markup. Used by diagnostics and by
// callers replaying a dumped page.
func RunHTML(rawHTML string, req *models.ExtractRequest) (*models.Result, error) {
	req.Defaults()
	return Process(&scraper.FetchResult{HTML: rawHTML}, req)
}
