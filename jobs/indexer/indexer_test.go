package indexer

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"folio/infra/kafka"
	"folio/infra/storage"
	"folio/service"
)

// fakeConsumer feeds a fixed message list, then cancels the context to
// stop Run.
type fakeConsumer struct {
	msgs    []kafka.Message
	commits int
	cancel  context.CancelFunc
}

func (c *fakeConsumer) Fetch(ctx context.Context) (kafka.Message, error) {
	if len(c.msgs) == 0 {
		c.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := c.msgs[0]
	c.msgs = c.msgs[1:]
	return m, nil
}

func (c *fakeConsumer) Commit(ctx context.Context) error {
	c.commits++
	return nil
}

func eventPayload(t *testing.T, seq uint64, typ string) []byte {
	t.Helper()
	data, err := service.EncodeEvent(service.Event{V: 1, ID: "id", Seq: seq, Type: typ, Time: 123})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRunIndexesEvents(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeConsumer{
		cancel: cancel,
		msgs: []kafka.Message{
			{Value: eventPayload(t, 1, "place")},
			{Value: eventPayload(t, 2, "fill")},
			{Value: []byte("not json")},      // skipped, still committed
			{Value: eventPayload(t, 2, "fill")}, // redelivery, deduped
		},
	}

	ix := New(slog.Default(), src, store)
	if err := ix.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if src.commits != 4 {
		t.Fatalf("commits = %d, want 4", src.commits)
	}
	n, _ := store.Count()
	if n != 2 {
		t.Fatalf("indexed rows = %d, want 2", n)
	}
	rows, _ := store.Events(0, 10)
	if rows[0].Type != "place" || rows[1].Type != "fill" {
		t.Fatalf("rows = %+v", rows)
	}
	last, _ := store.LastSeq()
	if last != 2 {
		t.Fatalf("last seq = %d", last)
	}
}
