package service

import (
	"fmt"

	"folio/infra/wal"
)

// ReplayWAL rebuilds engine state by re-applying every journaled
// operation. It must run before the service accepts traffic, against
// the same genesis configuration the journal was written under.
//
// Only successful operations were journaled, so a replay failure means
// the journal and the genesis no longer agree; the caller should treat
// that as fatal rather than serve from half-rebuilt state.
func (s *Service) ReplayWAL(dir string) (int, error) {
	r, err := wal.OpenReader(dir)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaying = true
	defer func() { s.replaying = false }()

	var count int
	var lastSeq uint64
	for r.Next() {
		rec := r.Record()
		op, err := DecodeOp(rec.Data)
		if err != nil {
			return count, fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}
		if _, err := s.apply(op); err != nil {
			return count, fmt.Errorf("replay seq %d (%s): %w", rec.Seq, op.Type, err)
		}
		lastSeq = rec.Seq
		count++
	}
	if err := r.Err(); err != nil {
		return count, fmt.Errorf("replay read: %w", err)
	}

	s.seq.Reset(lastSeq)
	s.log.Info("wal replay complete", "records", count, "last_seq", lastSeq)
	return count, nil
}
