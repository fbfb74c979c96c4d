// Package search indexes contracts for full-text lookup: Meilisearch when
// configured, a Postgres substring fallback otherwise.
package search

// ContractRecord is the data we index for a contract.
type ContractRecord struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"projectId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Status    string `json:"status"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"projectId"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Status    string `json:"status"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
