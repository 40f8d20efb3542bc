package broadcaster

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"

	"folio/infra/outbox"
)

type fakeProducer struct {
	sent    []*sarama.ProducerMessage
	failKey string
}

func (p *fakeProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	key, _ := msg.Key.Encode()
	if string(key) == p.failKey {
		return 0, 0, errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return 0, int64(len(p.sent)), nil
}

func (p *fakeProducer) Close() error { return nil }

func newTestBroadcaster(t *testing.T) (*Broadcaster, *outbox.Outbox, *fakeProducer) {
	t.Helper()
	ob, err := outbox.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ob.Close() })
	p := &fakeProducer{}
	b := newWith(slog.Default(), ob, p, "book.events")
	return b, ob, p
}

func TestDrainPublishesAndAcks(t *testing.T) {
	b, ob, p := newTestBroadcaster(t)

	ob.Put(1, []byte("one"))
	ob.Put(2, []byte("two"))

	n, err := b.drainOnce()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("published = %d, want 2", n)
	}
	if len(p.sent) != 2 {
		t.Fatalf("messages sent = %d", len(p.sent))
	}
	v, _ := p.sent[0].Value.Encode()
	if string(v) != "one" {
		t.Fatalf("payload = %q", v)
	}

	for seq := uint64(1); seq <= 2; seq++ {
		e, err := ob.Get(seq)
		if err != nil {
			t.Fatal(err)
		}
		if e.State != outbox.StateAcked {
			t.Fatalf("seq %d state = %v, want ACKED", seq, e.State)
		}
	}

	// Nothing left pending.
	n, err = b.drainOnce()
	if err != nil || n != 0 {
		t.Fatalf("second drain = %d, %v", n, err)
	}
}

func TestFailedSendStaysPending(t *testing.T) {
	b, ob, p := newTestBroadcaster(t)
	p.failKey = "2"

	ob.Put(1, []byte("ok"))
	ob.Put(2, []byte("doomed"))

	n, err := b.drainOnce()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("published = %d, want 1", n)
	}

	e, _ := ob.Get(2)
	if e.State != outbox.StateSent {
		t.Fatalf("failed entry state = %v, want SENT (pending retry)", e.State)
	}
	if e.Retries != 1 {
		t.Fatalf("retries = %d, want 1", e.Retries)
	}

	// Broker recovers; the entry goes out on the next pass.
	p.failKey = ""
	n, err = b.drainOnce()
	if err != nil || n != 1 {
		t.Fatalf("retry drain = %d, %v", n, err)
	}
	e, _ = ob.Get(2)
	if e.State != outbox.StateAcked || e.Retries != 2 {
		t.Fatalf("after retry: %+v", e)
	}
}
