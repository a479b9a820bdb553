package search

import (
	"context"
	"log"

	"quill/api/internal/store"
)

// DocumentSource is the store-backed side of search: the exact substring
// scan used as fallback, and batch retrieval for Meilisearch hits.
type DocumentSource interface {
	SearchDocuments(ctx context.Context, query string) ([]store.Document, error)
	GetDocumentsByIDs(ctx context.Context, ids []string) ([]store.Document, error)
}

// Service is the facade that tries Meilisearch first and falls back to a
// Postgres ILIKE scan.
type Service struct {
	meili  *Meili
	source DocumentSource
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, source DocumentSource) *Service {
	return &Service{meili: meili, source: source}
}

// Search resolves a query to full documents. Meilisearch supplies ranked ids
// when healthy; otherwise the store's substring scan answers directly.
func (s *Service) Search(ctx context.Context, query string) ([]store.Document, error) {
	if s.meili != nil && s.meili.Healthy() {
		ids, err := s.meili.Search(Query{Text: query})
		if err == nil {
			return s.source.GetDocumentsByIDs(ctx, ids)
		}
		log.Printf("search: meilisearch error, falling back to store scan: %v", err)
	}
	return s.source.SearchDocuments(ctx, query)
}

// IndexDocument indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDocument(doc DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocument(doc); err != nil {
			log.Printf("search: index document %s: %v", doc.ID, err)
		}
	}()
}

// ReindexAll pushes every stored document into Meilisearch. Called during
// bootstrap when Meilisearch is configured.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	documents, err := s.source.SearchDocuments(ctx, "")
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	records := make([]DocumentRecord, 0, len(documents))
	for _, doc := range documents {
		records = append(records, DocumentRecord{ID: doc.ID, Title: doc.Title, Content: doc.Content})
	}
	if err := s.meili.IndexDocuments(records); err != nil {
		log.Printf("search: reindex documents: %v", err)
	}
}
