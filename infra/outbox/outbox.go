// Package outbox persists settlement events until a broadcaster has
// confirmed their publication. Events survive restarts; the
// broadcaster drains whatever is pending.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	}
	return "UNKNOWN"
}

var ErrNotFound = errors.New("outbox: entry not found")

// Entry is one durable event awaiting publication, keyed by the WAL
// sequence of the operation that produced it.
type Entry struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// Outbox is a pebble-backed event store. Safe for one writer and one
// draining broadcaster; pebble serializes the actual IO.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stores a fresh event in state NEW.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	e := Entry{Seq: seq, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(seq), encodeEntry(e), pebble.Sync)
}

// MarkSent flags the entry as handed to the transport, bumping its
// retry counter.
func (o *Outbox) MarkSent(seq uint64, now int64) error {
	return o.update(seq, StateSent, now)
}

// MarkAcked flags the entry as confirmed by the transport.
func (o *Outbox) MarkAcked(seq uint64, now int64) error {
	return o.update(seq, StateAcked, now)
}

func (o *Outbox) update(seq uint64, state State, now int64) error {
	e, err := o.Get(seq)
	if err != nil {
		return err
	}
	e.State = state
	if state == StateSent {
		e.Retries++
	}
	e.LastAttempt = now
	return o.db.Set(keyFor(seq), encodeEntry(e), pebble.Sync)
}

// Delete removes an entry, normally after it was acked and pruned.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// Get returns the entry at seq.
func (o *Outbox) Get(seq uint64) (Entry, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	defer closer.Close()
	return decodeEntry(seq, val)
}

// ScanPending visits every entry not yet acked, in sequence order.
// SENT entries are revisited so a crash between send and ack leads to
// a redelivery, never a loss.
func (o *Outbox) ScanPending(fn func(Entry) error) error {
	return o.scan(func(e Entry) error {
		if e.State == StateAcked {
			return nil
		}
		return fn(e)
	})
}

// PruneAcked deletes every acked entry and reports how many went.
func (o *Outbox) PruneAcked() (int, error) {
	var seqs []uint64
	err := o.scan(func(e Entry) error {
		if e.State == StateAcked {
			seqs = append(seqs, e.Seq)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, seq := range seqs {
		if err := o.Delete(seq); err != nil {
			return 0, err
		}
	}
	return len(seqs), nil
}

func (o *Outbox) scan(fn func(Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e, err := decodeEntry(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ----- Encoding -----

// Value layout: [state:1][retries:4][lastAttempt:8][payload].
const valueHeader = 1 + 4 + 8

func encodeEntry(e Entry) []byte {
	buf := make([]byte, valueHeader+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[valueHeader:], e.Payload)
	return buf
}

func decodeEntry(seq uint64, b []byte) (Entry, error) {
	if len(b) < valueHeader {
		return Entry{}, fmt.Errorf("outbox: entry for seq %d too short (%d bytes)", seq, len(b))
	}
	return Entry{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[valueHeader:]...),
	}, nil
}

// ----- Keys -----

const keyPrefix = "evt/"

// Zero-padded so lexicographic pebble order matches sequence order.
func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%d", &seq); err != nil {
		return 0, fmt.Errorf("outbox: bad key %q: %w", b, err)
	}
	return seq, nil
}
