// Package store holds the record data model and the snapshot persistence
// backends. Persistence is best effort: the in-memory state owned by the
// app package stays authoritative, and every backend loads and saves the
// full record map as one snapshot.
package store

import "context"

// Store persists point-in-time snapshots of the record map.
//
// Save is called after every accepted mutation and must not be relied on
// for durability guarantees; a failed save is logged by the caller and
// the HTTP response that triggered it has already been sent.
type Store interface {
	Load(ctx context.Context) (RecordMap, error)
	Save(ctx context.Context, records RecordMap) error
	Close() error
}
