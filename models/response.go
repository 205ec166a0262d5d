package models

// TimingInfo breaks down where an extraction run spent its time.
type TimingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	NavigationMs int64 `json:"navigation_ms,omitempty"`
	ExtractionMs int64 `json:"extraction_ms,omitempty"`
}

// ExtractResponse is the API payload for a single extraction run.
type ExtractResponse struct {
	Success     bool         `json:"success"`
	Result      *Result      `json:"result,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	CacheStatus string       `json:"cache_status,omitempty"` // "hit" or "miss"
	Timing      TimingInfo   `json:"timing"`
}

// PoolStats is a snapshot of browser page pool utilisation.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// HealthResponse is the payload for GET /api/v1/health. Beyond liveness it
// surfaces the signals an operator actually watches on this service: how
// often runs succeed, how often the target site serves challenge
// interstitials, and how much per-domain engine memory has accumulated.
type HealthResponse struct {
	Status             string    `json:"status"`
	Uptime             string    `json:"uptime"`
	PoolStats          PoolStats `json:"pool"`
	RunsSucceeded      int64     `json:"runs_succeeded"`
	RunsFailed         int64     `json:"runs_failed"`
	ChallengesDetected int64     `json:"challenges_detected"`
	RememberedDomains  int       `json:"remembered_domains"`
	Version            string    `json:"version"`
}
