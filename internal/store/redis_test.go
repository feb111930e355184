package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rs := newMiniredisStore(t)
	ctx := context.Background()

	if err := rs.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := rs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d records, want 2", len(loaded))
	}
	if loaded[2].Comments[0].Author != "C" {
		t.Fatalf("comment lost: %+v", loaded[2])
	}
}

func TestRedisStoreEmptyKeyStartsEmpty(t *testing.T) {
	rs := newMiniredisStore(t)

	loaded, err := rs.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty map, got %d records", len(loaded))
	}
}

func TestRedisStoreOverwrites(t *testing.T) {
	rs := newMiniredisStore(t)
	ctx := context.Background()

	if err := rs.Save(ctx, sampleRecords()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	only := RecordMap{9: {ID: 9, Author: "Z", Title: "last", Description: "one", Status: StatusClosed}}
	if err := rs.Save(ctx, only); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := rs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[9].Title != "last" {
		t.Fatalf("overwrite not applied: %+v", loaded)
	}
}
