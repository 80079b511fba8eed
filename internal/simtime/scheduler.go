package simtime

import "container/heap"

// Handler processes one due event. now is the simtime the scheduler has
// just advanced to (equal to event.DueSimTime).
type Handler func(now float64, event *Event)

// StopToken is a cooperative cancellation signal: Run checks it between
// events and exits the loop without interrupting an in-flight dispatch,
// per spec.md §5.
type StopToken struct {
	stopped bool
}

// Stop requests early termination of the current Run call.
func (t *StopToken) Stop() {
	if t != nil {
		t.stopped = true
	}
}

// Stopped reports whether Stop has been called.
func (t *StopToken) Stopped() bool {
	return t != nil && t.stopped
}

// Scheduler is a min-heap of events ordered by (due_simtime,
// monotonic_seq), advancing a virtual clock as it dispatches them.
type Scheduler struct {
	heap eventHeap
	seq  *Sequencer
	now  float64
}

// NewScheduler creates an empty scheduler with its own sequence
// generator.
func NewScheduler() *Scheduler {
	return &Scheduler{seq: NewSequencer()}
}

// Now returns the scheduler's current virtual time.
func (s *Scheduler) Now() float64 {
	return s.now
}

// Pending returns the number of events still queued.
func (s *Scheduler) Pending() int {
	return len(s.heap)
}

// Schedule assigns the next monotonic sequence number and inserts a new
// event due at dueSimTime. It returns the event so the caller can later
// call Supersede on it for cooperative cancellation.
func (s *Scheduler) Schedule(dueSimTime float64, kind Kind, payload interface{}) *Event {
	event := &Event{
		DueSimTime: dueSimTime,
		Sequence:   s.seq.Next(),
		Kind:       kind,
		Payload:    payload,
	}
	heap.Push(&s.heap, event)
	return event
}

// Run repeatedly pops the minimum event whose due time is <= until,
// advances virtual time to that due time, and dispatches it via
// handle. It stops when the heap is empty, the next due time exceeds
// until, or stop has been requested between events.
func (s *Scheduler) Run(until float64, stop *StopToken, handle Handler) {
	for len(s.heap) > 0 {
		if stop.Stopped() {
			return
		}

		next := s.heap[0]
		if next.DueSimTime > until {
			return
		}

		event := heap.Pop(&s.heap).(*Event)
		if event.superseded {
			continue
		}

		s.now = event.DueSimTime
		handle(s.now, event)
	}
}

// eventHeap implements container/heap.Interface ordered by
// (DueSimTime, Sequence) — ties at equal due times resolve by insertion
// order, per spec.md §3.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].DueSimTime != h[j].DueSimTime {
		return h[i].DueSimTime < h[j].DueSimTime
	}
	return h[i].Sequence < h[j].Sequence
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
