package search

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"contractops/api/internal/store"
)

// fallbackStore is the Postgres substring search used when Meilisearch is
// down or not configured.
type fallbackStore interface {
	SearchContracts(ctx context.Context, query string, limit int) ([]store.Contract, error)
}

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres store.
type Service struct {
	meili    *Meili
	fallback fallbackStore
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback fallbackStore) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search runs a contract search, preferring the Meilisearch index.
func (s *Service) Search(ctx context.Context, query string, limit int) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(query, limit)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: query}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	contracts, err := s.fallback.SearchContracts(ctx, query, limit)
	if err != nil {
		log.Printf("search: postgres fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: query}
	}

	results := make([]Result, 0, len(contracts))
	for _, c := range contracts {
		results = append(results, Result{
			ID:        c.ID,
			ProjectID: c.ProjectID,
			Title:     c.Title,
			Snippet:   snippet(c.Content),
			Status:    c.Status,
		})
	}
	return Response{Results: results, Total: len(results), Query: query}
}

// IndexContract indexes a contract (fire-and-forget to Meilisearch).
func (s *Service) IndexContract(rec ContractRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContract(rec); err != nil {
			log.Printf("search: index contract %d: %v", rec.ID, err)
		}
	}()
}

// DeleteContract removes a contract from the index (fire-and-forget).
func (s *Service) DeleteContract(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContract(id); err != nil {
			log.Printf("search: delete contract %d: %v", id, err)
		}
	}()
}

// snippet trims content to a preview. Truncation counts runes, not bytes, so
// multi-byte text is never cut mid-character.
func snippet(content string) string {
	const max = 200
	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) <= max {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:max]) + "…"
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
