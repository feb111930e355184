package search

import (
	"testing"

	"bugtrack/api/internal/store"
)

func indexedMemory() *Memory {
	m := NewMemory()
	m.Replace(store.RecordMap{
		1: {ID: 1, Author: "Alice", Title: "Login broken", Description: "cannot sign in", Status: store.StatusOpen},
		2: {ID: 2, Author: "Bob", Title: "Slow dashboard", Description: "page takes 10s", Status: store.StatusInProgress,
			Comments: []store.Comment{{Author: "Carol", Message: "profiling shows the query is slow"}}},
		3: {ID: 3, Author: "Carol", Title: "Crash on save", Description: "nil dereference", Status: store.StatusClosed},
	})
	return m
}

func TestMemorySearchByField(t *testing.T) {
	m := indexedMemory()

	tests := []struct {
		name string
		text string
		want []int
	}{
		{"title match", "login", []int{1}},
		{"description match", "dereference", []int{3}},
		{"author match", "bob", []int{2}},
		{"comment match", "profiling", []int{2}},
		{"case insensitive", "LOGIN", []int{1}},
		{"no hits", "zebra", nil},
		{"empty query returns all", "", []int{1, 2, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, total, err := m.Search(Query{Text: tc.text})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if total != len(tc.want) {
				t.Fatalf("total = %d, want %d", total, len(tc.want))
			}
			if len(results) != len(tc.want) {
				t.Fatalf("results = %d, want %d", len(results), len(tc.want))
			}
			for i, id := range tc.want {
				if results[i].ID != id {
					t.Fatalf("result[%d].ID = %d, want %d", i, results[i].ID, id)
				}
			}
		})
	}
}

func TestMemorySearchLimit(t *testing.T) {
	m := indexedMemory()

	results, total, err := m.Search(Query{Text: "", Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
}

func TestMemoryReplaceSwapsState(t *testing.T) {
	m := indexedMemory()
	m.Replace(store.RecordMap{})

	_, total, err := m.Search(Query{Text: "login"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 0 {
		t.Fatalf("stale results after replace: %d", total)
	}
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	svc := NewService(nil, indexedMemory())

	resp := svc.Search(Query{Text: "login"})
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Query != "login" {
		t.Fatalf("query echo = %q", resp.Query)
	}
}

func TestServiceSearchNeverReturnsNilResults(t *testing.T) {
	svc := NewService(nil, NewMemory())

	resp := svc.Search(Query{Text: "anything"})
	if resp.Results == nil {
		t.Fatal("results must be an empty slice, not nil")
	}
}
