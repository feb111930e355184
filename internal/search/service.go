package search

import (
	"log"

	"bugtrack/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to
// the in-memory index.
type Service struct {
	meili  *Meili
	memory *Memory
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, memory *Memory) *Service {
	return &Service{meili: meili, memory: memory}
}

// Search tries Meilisearch if healthy, otherwise the in-memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to memory index: %v", err)
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		log.Printf("search: memory index error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexSnapshot refreshes both indexes from a post-mutation snapshot.
// The in-memory index updates synchronously; Meilisearch indexing is
// fire-and-forget.
func (s *Service) IndexSnapshot(records store.RecordMap) {
	s.memory.Replace(records)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	snapshot := records.Clone()
	go func() {
		if err := s.meili.IndexRecords(snapshot); err != nil {
			log.Printf("search: index snapshot: %v", err)
		}
	}()
}

// RemoveRecord drops a deleted record from Meilisearch. The in-memory
// index is already refreshed by IndexSnapshot.
func (s *Service) RemoveRecord(id int) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.RemoveRecord(id); err != nil {
			log.Printf("search: remove record %d: %v", id, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
