// Package search provides full-text search over to-dos, issues and
// goals. Meilisearch serves queries when reachable; an in-memory
// snapshot scan of the store covers outages.
package search

import (
	"log"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/store"
)

// Service routes searches to Meilisearch when healthy and to the
// snapshot fallback otherwise. It also implements store.Indexer so
// mutations keep the external index current.
type Service struct {
	meili    *Meili
	fallback *Snapshot
}

// New builds the search service. meiliURL may be empty, in which case
// every query goes to the snapshot fallback and indexing is a no-op.
func New(meiliURL, apiKey string, st *store.Store) *Service {
	svc := &Service{fallback: NewSnapshot(st)}
	if meiliURL != "" {
		svc.meili = NewMeili(meiliURL, apiKey)
	}
	return svc
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

// Search runs the query against the best available backend.
func (s *Service) Search(q Query) ([]Result, int, error) {
	q = q.normalized()
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return results, total, nil
		}
		log.Printf("search: meilisearch query failed, using snapshot: %v", err)
	}
	return s.fallback.Search(q)
}

// Healthy reports whether the preferred backend is serving.
func (s *Service) Healthy() bool {
	if s.meili != nil {
		return s.meili.Healthy()
	}
	return true
}

// Indexing failures must never block a mutation, so the Index* methods
// hand off to goroutines and only log errors.

func (s *Service) IndexTodo(t domain.TodoItem) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexTodo(t); err != nil {
			log.Printf("search: index todo %s: %v", t.ID, err)
		}
	}()
}

func (s *Service) IndexIssue(is domain.IssueItem) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexIssue(is); err != nil {
			log.Printf("search: index issue %s: %v", is.ID, err)
		}
	}()
}

func (s *Service) IndexGoal(g domain.QuarterlyGoal) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexGoal(g); err != nil {
			log.Printf("search: index goal %s: %v", g.ID, err)
		}
	}()
}
