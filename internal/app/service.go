// Package app wires the record store, long-poll gate and broadcast hub
// behind the HTTP surface. All mutations flow through the Service so the
// version counter, waiter resolution, socket broadcast and best-effort
// persistence always happen in the same order.
package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bugtrack/api/internal/config"
	"bugtrack/api/internal/search"
	"bugtrack/api/internal/store"
)

const saveTimeout = 10 * time.Second

type Service struct {
	cfg config.Config

	// mu serializes each mutation with its own fan-out. Without it two
	// concurrent mutations could resolve the gate and broadcast their
	// snapshots out of order, handing clients a version decrease.
	mu        sync.Mutex
	records   *RecordStore
	gate      *LongPollGate
	hub       *Hub
	snapshots store.Store
	search    *search.Service
}

// New constructs a service with its own isolated record store, gate and
// hub. snapshots and searchService may be nil in tests.
func New(cfg config.Config, snapshots store.Store, searchService *search.Service) *Service {
	records := NewRecordStore()
	return &Service{
		cfg:       cfg,
		records:   records,
		gate:      NewLongPollGate(records),
		hub:       NewHub(),
		snapshots: snapshots,
		search:    searchService,
	}
}

// Bootstrap loads the persisted snapshot into the record store. A load
// failure is not fatal: the server starts fresh and the error is left to
// the caller to log.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	records, err := s.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	s.records.Seed(records)
	if s.search != nil {
		s.search.IndexSnapshot(records)
	}
	log.Printf("loaded %d records from snapshot store", len(records))
	return nil
}

func (s *Service) GetRecord(id int) (store.Record, bool) {
	return s.records.Get(id)
}

// PutRecord creates or replaces a record and fires the update fan-out.
func (s *Service) PutRecord(id int, author, title, description string) store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records.Put(id, author, title, description)
	s.updated("PUT")
	return rec
}

// DeleteRecord removes a record if present. Deleting an absent id is
// accepted silently and fires nothing.
func (s *Service) DeleteRecord(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.records.Delete(id) {
		return
	}
	if s.search != nil {
		s.search.RemoveRecord(id)
	}
	s.updated("DELETE")
}

// AddComment appends a comment, promoting an open record to
// in-progress. Returns false when the record does not exist.
func (s *Service) AddComment(id int, comment store.Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records.AddComment(id, comment); !ok {
		return false
	}
	s.updated("POST")
	return true
}

// CloseRecord marks a record closed. Returns false when the record does
// not exist. Re-closing a closed record responds fine but fires nothing.
func (s *Service) CloseRecord(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found, changed := s.records.CloseRecord(id)
	if !found {
		return false
	}
	if changed {
		s.updated("PATCH")
	}
	return true
}

func (s *Service) ListSnapshot() Snapshot {
	return s.records.Snapshot()
}

// WaitForChange blocks until the record set moves past knownVersion or
// the timeout elapses. The second return is false on no change.
func (s *Service) WaitForChange(ctx context.Context, knownVersion int, timeout time.Duration) (Snapshot, bool) {
	return s.gate.Wait(ctx, knownVersion, timeout)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// RegisterSocket hands a freshly upgraded connection to the hub, which
// pushes the init snapshot to it.
func (s *Service) RegisterSocket(socket *websocket.Conn) {
	s.hub.Register(socket, s.records.Snapshot())
}

// updated is the single fan-out point after an accepted mutation: the
// version was already incremented by the record store, then pending
// long-polls resolve, sockets get the push, and persistence plus search
// indexing run in the background. A persistence failure is logged only;
// the HTTP response has already been decided. Callers hold s.mu so
// snapshot, resolution and broadcast happen in version order.
func (s *Service) updated(kind string) {
	snap := s.records.Snapshot()
	s.gate.Resolve(snap)
	s.hub.Broadcast(kind, snap)

	records := s.records.Export()
	if s.search != nil {
		s.search.IndexSnapshot(records)
	}
	if s.snapshots != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			defer cancel()
			if err := s.snapshots.Save(ctx, records); err != nil {
				log.Printf("persistence: save snapshot failed: %v", err)
			}
		}()
	}
}
