package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"bugtrack/api/internal/store"
)

const idxRecords = "bugtrack_records"

// recordDoc is the shape we index per record. Comment messages are
// flattened into one searchable field.
type recordDoc struct {
	ID          int    `json:"id"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Comments    string `json:"comments"`
}

// Meili indexes and searches records via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the records
// index. An unreachable server is tolerated: the client marks itself
// unhealthy and a background loop keeps probing.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxRecords,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxRecords, err)
	}

	index := m.client.Index(idxRecords)
	searchable := []string{"title", "description", "author", "comments"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxRecords, err)
	}
	filterable := []interface{}{"status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxRecords, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexRecords upserts the given records into the index.
func (m *Meili) IndexRecords(records store.RecordMap) error {
	docs := make([]recordDoc, 0, len(records))
	for _, rec := range records {
		messages := make([]string, 0, len(rec.Comments))
		for _, c := range rec.Comments {
			messages = append(messages, c.Message)
		}
		docs = append(docs, recordDoc{
			ID:          rec.ID,
			Author:      rec.Author,
			Title:       rec.Title,
			Description: rec.Description,
			Status:      string(rec.Status),
			Comments:    strings.Join(messages, "\n"),
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.client.Index(idxRecords).AddDocuments(docs, nil); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("index records: %w", err)
	}
	return nil
}

// RemoveRecord drops one record from the index.
func (m *Meili) RemoveRecord(id int) error {
	if _, err := m.client.Index(idxRecords).DeleteDocument(fmt.Sprintf("%d", id), nil); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("remove record %d: %w", id, err)
	}
	return nil
}

// Search queries the records index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxRecords).Search(q.Text, &meili.SearchRequest{
		Limit: limit,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, Result{
			ID:      decodeInt(hit, "id"),
			Title:   decodeString(hit, "title"),
			Status:  decodeString(hit, "status"),
			Snippet: snippet(decodeString(hit, "description")),
		})
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}
