package outbox

import (
	"errors"
	"testing"
)

func openTest(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestPutGet(t *testing.T) {
	o := openTest(t)

	if err := o.Put(7, []byte("payload-7")); err != nil {
		t.Fatal(err)
	}
	e, err := o.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 7 || e.State != StateNew || e.Retries != 0 || string(e.Payload) != "payload-7" {
		t.Fatalf("entry = %+v", e)
	}

	if _, err := o.Get(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing entry: got %v, want ErrNotFound", err)
	}
}

func TestStateTransitions(t *testing.T) {
	o := openTest(t)
	o.Put(1, []byte("x"))

	if err := o.MarkSent(1, 1000); err != nil {
		t.Fatal(err)
	}
	e, _ := o.Get(1)
	if e.State != StateSent || e.Retries != 1 || e.LastAttempt != 1000 {
		t.Fatalf("after sent: %+v", e)
	}

	// A retry bumps the counter again.
	if err := o.MarkSent(1, 2000); err != nil {
		t.Fatal(err)
	}
	e, _ = o.Get(1)
	if e.Retries != 2 {
		t.Fatalf("retries = %d, want 2", e.Retries)
	}

	if err := o.MarkAcked(1, 3000); err != nil {
		t.Fatal(err)
	}
	e, _ = o.Get(1)
	if e.State != StateAcked || e.Retries != 2 {
		t.Fatalf("after ack: %+v", e)
	}

	if err := o.MarkSent(42, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark missing: got %v, want ErrNotFound", err)
	}
}

func TestScanPendingOrderAndFilter(t *testing.T) {
	o := openTest(t)

	// Out-of-order puts; the zero-padded keys restore sequence order.
	for _, seq := range []uint64{3, 1, 20, 2} {
		if err := o.Put(seq, []byte{byte(seq)}); err != nil {
			t.Fatal(err)
		}
	}
	o.MarkSent(2, 1)
	o.MarkAcked(2, 2)

	var got []uint64
	err := o.ScanPending(func(e Entry) error {
		got = append(got, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{1, 3, 20}
	if len(got) != len(want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pending = %v, want %v", got, want)
		}
	}

	// SENT but unacked stays pending.
	o.MarkSent(3, 5)
	got = got[:0]
	o.ScanPending(func(e Entry) error {
		got = append(got, e.Seq)
		return nil
	})
	if len(got) != 3 {
		t.Fatalf("sent-not-acked dropped from pending: %v", got)
	}
}

func TestPruneAcked(t *testing.T) {
	o := openTest(t)
	for seq := uint64(1); seq <= 4; seq++ {
		o.Put(seq, []byte("x"))
	}
	o.MarkAcked(1, 1)
	o.MarkAcked(3, 1)

	n, err := o.PruneAcked()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("pruned = %d, want 2", n)
	}
	if _, err := o.Get(1); !errors.Is(err, ErrNotFound) {
		t.Fatal("acked entry 1 should be gone")
	}
	if _, err := o.Get(2); err != nil {
		t.Fatal("pending entry 2 should survive")
	}
}
