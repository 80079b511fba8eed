package simtime

import "sync"

// Sequencer hands out a strictly increasing sequence number used to
// break ties between events due at the same simtime, guaranteeing FIFO
// ordering for equal due times (spec.md §3/§4.1). Its shape — a
// mutex-guarded monotonic counter incremented on every use — mirrors a
// Lamport logical clock, repurposed here from causal message ordering
// into the scheduler's own tie-break source.
type Sequencer struct {
	mu   sync.Mutex
	next uint64
}

// NewSequencer creates a sequencer starting at 0.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence value and advances the counter.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.next
	s.next++
	return v
}
