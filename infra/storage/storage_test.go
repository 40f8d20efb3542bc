package storage

import (
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	return s
}

func TestSaveAndQueryEvents(t *testing.T) {
	s := setupTestDB(t)

	for seq := uint64(1); seq <= 5; seq++ {
		row := &EventRow{
			Seq:     seq,
			EventID: "evt-id",
			Type:    "place",
			Payload: []byte{byte(seq)},
		}
		if err := s.SaveEvent(row); err != nil {
			t.Fatalf("save seq %d: %v", seq, err)
		}
	}

	rows, err := s.Events(2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows after seq 2 = %d, want 3", len(rows))
	}
	if rows[0].Seq != 3 || rows[2].Seq != 5 {
		t.Fatalf("row order wrong: %d..%d", rows[0].Seq, rows[2].Seq)
	}

	rows, err = s.Events(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("limited rows = %d, want 2", len(rows))
	}
}

func TestSaveEventIdempotent(t *testing.T) {
	s := setupTestDB(t)

	row := &EventRow{Seq: 1, Type: "fill", Payload: []byte("first")}
	if err := s.SaveEvent(row); err != nil {
		t.Fatal(err)
	}
	// Redelivery with the same sequence is a no-op.
	dup := &EventRow{Seq: 1, Type: "fill", Payload: []byte("second")}
	if err := s.SaveEvent(dup); err != nil {
		t.Fatalf("duplicate save: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	rows, _ := s.Events(0, 10)
	if string(rows[0].Payload) != "first" {
		t.Fatalf("payload overwritten: %q", rows[0].Payload)
	}
}

func TestEventsByType(t *testing.T) {
	s := setupTestDB(t)
	s.SaveEvent(&EventRow{Seq: 1, Type: "place"})
	s.SaveEvent(&EventRow{Seq: 2, Type: "fill"})
	s.SaveEvent(&EventRow{Seq: 3, Type: "fill"})

	rows, err := s.EventsByType("fill", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Seq != 3 {
		t.Fatalf("fills = %+v", rows)
	}
}

func TestLastSeq(t *testing.T) {
	s := setupTestDB(t)

	got, err := s.LastSeq()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("empty LastSeq = %d, want 0", got)
	}

	s.SaveEvent(&EventRow{Seq: 7, Type: "cancel"})
	s.SaveEvent(&EventRow{Seq: 3, Type: "place"})
	got, err = s.LastSeq()
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("LastSeq = %d, want 7", got)
	}
}
