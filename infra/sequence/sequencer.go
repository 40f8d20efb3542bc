// Package sequence issues the global event sequence the WAL, outbox
// and indexer key on.
package sequence

import "sync/atomic"

// Sequencer hands out strictly monotonic ids. Ids are never recycled,
// so an id identifies the same event across restarts.
type Sequencer struct {
	last atomic.Uint64
}

// New starts the sequencer after start: 0 on a fresh book, the last
// journaled sequence after replay.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next reserves and returns the next id.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the most recently issued id.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset moves the sequencer. Only valid while no writer is active,
// which in practice means directly after replay.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}
