package models

// Result is a single search result item as delivered to clients and
// stored in the query cache.
type Result struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
	Domain    string  `json:"domain"`
}

// Source identifies where a response's results came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceLive  Source = "live"
	SourceError Source = "error"
)
