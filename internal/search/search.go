// Package search provides full-text search over records: Meilisearch
// when configured and reachable, with an in-memory substring fallback so
// the endpoint keeps working without it.
package search

import (
	"sort"
	"strings"
	"sync"

	"bugtrack/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Memory is the fallback index: a copy of the record set searched by
// case-insensitive substring match.
type Memory struct {
	mu      sync.RWMutex
	records store.RecordMap
}

func NewMemory() *Memory {
	return &Memory{records: store.RecordMap{}}
}

// Replace swaps in a fresh copy of the record set. Called on every
// mutation with the post-mutation snapshot.
func (m *Memory) Replace(records store.RecordMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records.Clone()
}

func (m *Memory) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	var results []Result
	for _, rec := range m.records {
		if needle != "" && !matches(rec, needle) {
			continue
		}
		results = append(results, Result{
			ID:      rec.ID,
			Title:   rec.Title,
			Status:  string(rec.Status),
			Snippet: snippet(rec.Description),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	total := len(results)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

func matches(rec store.Record, needle string) bool {
	if strings.Contains(strings.ToLower(rec.Title), needle) ||
		strings.Contains(strings.ToLower(rec.Description), needle) ||
		strings.Contains(strings.ToLower(rec.Author), needle) {
		return true
	}
	for _, c := range rec.Comments {
		if strings.Contains(strings.ToLower(c.Message), needle) {
			return true
		}
	}
	return false
}

func snippet(text string) string {
	const max = 160
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
