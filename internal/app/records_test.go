package app

import (
	"testing"

	"bugtrack/api/internal/store"
)

func TestPutCreateAndReplace(t *testing.T) {
	rs := NewRecordStore()

	rec := rs.Put(1, "A", "T", "D")
	if rec.Status != store.StatusOpen {
		t.Fatalf("new record status = %s, want open", rec.Status)
	}
	if len(rec.Comments) != 0 {
		t.Fatalf("new record has %d comments, want 0", len(rec.Comments))
	}
	if rs.Version() != 1 {
		t.Fatalf("version = %d, want 1", rs.Version())
	}

	if _, ok := rs.AddComment(1, store.Comment{Author: "B", Message: "hi"}); !ok {
		t.Fatal("comment on existing record failed")
	}

	// A second PUT is a full replace, not a merge: status resets and
	// comments are dropped.
	rec = rs.Put(1, "A2", "T2", "D2")
	if rec.Status != store.StatusOpen {
		t.Fatalf("replaced record status = %s, want open", rec.Status)
	}
	if len(rec.Comments) != 0 {
		t.Fatalf("replaced record kept %d comments", len(rec.Comments))
	}
	if rec.Author != "A2" || rec.Title != "T2" || rec.Description != "D2" {
		t.Fatalf("replaced record fields wrong: %+v", rec)
	}
	if rs.Version() != 3 {
		t.Fatalf("version = %d, want 3", rs.Version())
	}
}

func TestVersionAccounting(t *testing.T) {
	rs := NewRecordStore()

	rs.Put(1, "A", "T", "D") // 1
	rs.Put(2, "A", "T", "D") // 2
	if !rs.Delete(1) {       // 3
		t.Fatal("delete of existing record reported nothing removed")
	}
	if rs.Delete(1) {
		t.Fatal("delete of absent record reported removal")
	}
	if rs.Version() != 3 {
		t.Fatalf("no-op delete moved the version: %d", rs.Version())
	}

	rs.AddComment(2, store.Comment{Author: "B", Message: "hi"}) // 4
	if _, ok := rs.AddComment(99, store.Comment{Author: "B", Message: "hi"}); ok {
		t.Fatal("comment on absent record succeeded")
	}
	if rs.Version() != 4 {
		t.Fatalf("no-op comment moved the version: %d", rs.Version())
	}

	if _, found, changed := rs.CloseRecord(2); !found || !changed { // 5
		t.Fatalf("close: found=%v changed=%v", found, changed)
	}
	if _, found, changed := rs.CloseRecord(2); !found || changed {
		t.Fatalf("re-close: found=%v changed=%v", found, changed)
	}
	if rs.Version() != 5 {
		t.Fatalf("version = %d, want 5", rs.Version())
	}
}

func TestCommentPromotesOpenOnly(t *testing.T) {
	rs := NewRecordStore()
	rs.Put(1, "A", "T", "D")

	rec, _ := rs.AddComment(1, store.Comment{Author: "B", Message: "first"})
	if rec.Status != store.StatusInProgress {
		t.Fatalf("status after first comment = %s, want in-progress", rec.Status)
	}

	rec, _ = rs.AddComment(1, store.Comment{Author: "B", Message: "second"})
	if rec.Status != store.StatusInProgress {
		t.Fatalf("status after second comment = %s, want in-progress", rec.Status)
	}
	if len(rec.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(rec.Comments))
	}

	rs.CloseRecord(1)
	rec, _ = rs.AddComment(1, store.Comment{Author: "B", Message: "third"})
	if rec.Status != store.StatusClosed {
		t.Fatalf("comment reopened a closed record: %s", rec.Status)
	}
}

func TestSnapshotOrdering(t *testing.T) {
	rs := NewRecordStore()

	// Inserted as closed, open, in-progress; output must group by
	// status priority and sort by id within a status.
	rs.Put(1, "A", "first", "D")
	rs.CloseRecord(1)
	rs.Put(2, "A", "second", "D")
	rs.Put(3, "A", "third", "D")
	rs.AddComment(3, store.Comment{Author: "B", Message: "hi"})
	rs.Put(4, "A", "fourth", "D")

	snap := rs.Snapshot()
	var ids []int
	for _, rec := range snap.Records {
		ids = append(ids, rec.ID)
	}
	want := []int{2, 4, 3, 1}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	rs := NewRecordStore()
	rs.Put(1, "A", "T", "D")
	rs.AddComment(1, store.Comment{Author: "B", Message: "hi"})

	snap := rs.Snapshot()
	snap.Records[0].Comments[0].Message = "mutated"
	snap.Records[0].Title = "mutated"

	rec, _ := rs.Get(1)
	if rec.Comments[0].Message != "hi" || rec.Title != "T" {
		t.Fatal("snapshot shares memory with the store")
	}
}

func TestSeedStartsAtVersionZero(t *testing.T) {
	rs := NewRecordStore()
	rs.Seed(store.RecordMap{
		7: {ID: 7, Author: "A", Title: "T", Description: "D", Status: store.StatusOpen},
	})

	if rs.Version() != 0 {
		t.Fatalf("seed moved the version to %d", rs.Version())
	}
	if _, ok := rs.Get(7); !ok {
		t.Fatal("seeded record missing")
	}
}
