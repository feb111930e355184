package app

import (
	"sort"
	"sync"

	"bugtrack/api/internal/store"
)

// Snapshot is the full ordered record list plus the version it reflects,
// as sent to both HTTP and WebSocket clients.
type Snapshot struct {
	Version int            `json:"version"`
	Records []store.Record `json:"records"`
}

// RecordStore owns the in-memory record map and the version counter.
// The version starts at 0 and moves up by exactly 1 for every accepted
// mutation; it is the sole change-detection token exposed to clients.
//
// One RWMutex guards both the map and the counter, so readers always
// observe a version/record-set pair that existed at some consistent
// point in time.
type RecordStore struct {
	mu      sync.RWMutex
	records store.RecordMap
	version int
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: store.RecordMap{}}
}

// Seed installs the loaded record set at version 0. Called once at
// startup, before the server accepts requests.
func (s *RecordStore) Seed(records store.RecordMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records.Clone()
}

func (s *RecordStore) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns a copy of the record, so callers can hold it without
// racing later mutations.
func (s *RecordStore) Get(id int) (store.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return store.Record{}, false
	}
	return cloneRecord(rec), true
}

// Put creates or fully replaces the record under id. A replace is not a
// merge: status resets to open and comments are cleared.
func (s *RecordStore) Put(id int, author, title, description string) store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := store.Record{
		ID:          id,
		Author:      author,
		Title:       title,
		Description: description,
		Status:      store.StatusOpen,
		Comments:    []store.Comment{},
	}
	s.records[id] = rec
	s.version++
	return cloneRecord(rec)
}

// Delete removes the record and reports whether anything was removed.
// Deleting an absent id is a no-op and does not move the version.
func (s *RecordStore) Delete(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	s.version++
	return true
}

// AddComment appends a comment and promotes an open record to
// in-progress. The promotion is idempotent: in-progress and closed
// records keep their status.
func (s *RecordStore) AddComment(id int, comment store.Comment) (store.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return store.Record{}, false
	}
	rec.Comments = append(rec.Comments, comment)
	if rec.Status == store.StatusOpen {
		rec.Status = store.StatusInProgress
	}
	s.records[id] = rec
	s.version++
	return cloneRecord(rec), true
}

// CloseRecord marks the record closed. Closing an already-closed record
// is accepted but changes nothing, so the version stays put.
func (s *RecordStore) CloseRecord(id int) (store.Record, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return store.Record{}, false, false
	}
	if rec.Status == store.StatusClosed {
		return cloneRecord(rec), true, false
	}
	rec.Status = store.StatusClosed
	s.records[id] = rec
	s.version++
	return cloneRecord(rec), true, true
}

// Snapshot returns the current version together with the ordered record
// list, read under one lock so the pair is consistent.
func (s *RecordStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]store.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, cloneRecord(rec))
	}
	sort.Slice(records, func(i, j int) bool {
		ri, rj := statusRank(records[i].Status), statusRank(records[j].Status)
		if ri != rj {
			return ri < rj
		}
		return records[i].ID < records[j].ID
	})

	return Snapshot{Version: s.version, Records: records}
}

// Export returns a copy of the raw record map for persistence and
// search indexing.
func (s *RecordStore) Export() store.RecordMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone()
}

// statusRank orders the list for presentation: open first, closed last.
func statusRank(status store.Status) int {
	switch status {
	case store.StatusOpen:
		return 0
	case store.StatusInProgress:
		return 1
	default:
		return 2
	}
}

func cloneRecord(rec store.Record) store.Record {
	comments := make([]store.Comment, len(rec.Comments))
	copy(comments, rec.Comments)
	rec.Comments = comments
	return rec
}
