package models

import "fmt"

// Known scouting-report table identifier variants, one per position group.
// Order doubles as the fallback priority when no position is given.
var scoutTableVariants = []string{
	"scout_full_GK",
	"scout_full_DF",
	"scout_full_MF",
	"scout_full_FW",
}

// ScoutTableIDs returns the table identifier variants to attempt for a
// position. An empty position yields all known variants in priority order.
func ScoutTableIDs(position string) []string {
	if position == "" {
		ids := make([]string, len(scoutTableVariants))
		copy(ids, scoutTableVariants)
		return ids
	}
	return []string{fmt.Sprintf("scout_full_%s", position)}
}

// ExtractRequest is one extraction run's configuration. It is immutable once
// the run starts: Defaults() is applied before the run and nothing mutates it
// afterwards.
type ExtractRequest struct {
	// URL is the target player page. Required.
	URL string `json:"url" binding:"required,url"`

	// TableIDs is the ordered list of table identifier variants to try.
	// The first identifier that matches wins. When empty, the list is
	// derived from Position (or all known variants).
	TableIDs []string `json:"table_ids,omitempty"`

	// Position is the player position group (GK, DF, MF, FW). Used to
	// derive TableIDs when they are not given explicitly.
	Position string `json:"position,omitempty" binding:"omitempty,oneof=GK DF MF FW"`

	// WaitTime is the maximum seconds to wait for the page readiness
	// signal per navigation attempt. Default: 10.
	WaitTime int `json:"wait_time,omitempty" binding:"omitempty,min=1,max=60"`

	// Retries is the number of re-navigations allowed after the first
	// attempt (timeouts and challenge pages both consume the budget).
	// Default: 3.
	Retries int `json:"retries,omitempty" binding:"omitempty,min=0,max=10"`

	// Timeout bounds the entire run in seconds. Default: 60. Max: 300.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`

	// Stealth enables anti-bot-detection evasions (navigator.webdriver
	// masking etc.). Default: true; the target site challenges bare
	// automation aggressively.
	Stealth *bool `json:"stealth,omitempty"`

	// MaxAge enables the result cache: a cached result younger than
	// MaxAge milliseconds is returned without touching the browser.
	MaxAge int `json:"max_age,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ExtractRequest) Defaults() {
	if len(r.TableIDs) == 0 {
		r.TableIDs = ScoutTableIDs(r.Position)
	}
	if r.WaitTime == 0 {
		r.WaitTime = 10
	}
	if r.Retries == 0 {
		r.Retries = 3
	}
	if r.Timeout == 0 {
		r.Timeout = 60
	}
	if r.Stealth == nil {
		t := true
		r.Stealth = &t
	}
}
