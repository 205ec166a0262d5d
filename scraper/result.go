package scraper

// FetchResult is the output of a successful page acquisition.
type FetchResult struct {
	// HTML is the fully rendered page markup.
	HTML string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the navigation's HTTP status, when known.
	StatusCode int

	// Attempts is how many navigations it took, including the first.
	Attempts int

	// EngineUsed records which fetch path produced the markup:
	// "browser" or a dispatcher engine name ("http", "rod", "rod-stealth").
	EngineUsed string
}
