// Package search provides document search: Meilisearch when configured and
// healthy, with a Postgres substring scan as the always-available fallback.
package search

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}
