package sequence

import (
	"sync"
	"testing"
)

func TestSequencer(t *testing.T) {
	s := New(0)
	if got := s.Next(); got != 1 {
		t.Fatalf("first id = %d, want 1", got)
	}
	if got := s.Next(); got != 2 {
		t.Fatalf("second id = %d, want 2", got)
	}
	if got := s.Current(); got != 2 {
		t.Fatalf("current = %d, want 2", got)
	}

	s.Reset(100)
	if got := s.Next(); got != 101 {
		t.Fatalf("id after reset = %d, want 101", got)
	}
}

func TestSequencerConcurrentUniqueness(t *testing.T) {
	s := New(0)
	const workers, perWorker = 8, 1000

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := s.Next()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if got := s.Current(); got != workers*perWorker {
		t.Fatalf("current = %d, want %d", got, workers*perWorker)
	}
}
