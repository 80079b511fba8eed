// Package simnode implements the node execution model: the resumable
// step contract every node behavior satisfies, and the runtime state
// (FIFO input queue, reservation window) that hosts it.
package simnode

import (
	"github.com/ersantana/bobcatsim/internal/position"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simstats"
)

// Result is what a node behavior's Step returns: how long the node is
// reserved before and while emitting, and the outputs to dispatch at
// the end of that reservation window. Per spec.md §4.2.
type Result struct {
	SetupDelay      float64
	ProcessingDelay float64
	Outputs         []*simmsg.Message
}

// ReadyAt returns the simtime at which a node invoked at `now` with this
// result becomes idle again (or re-invoked, if its queue is non-empty).
func (r Result) ReadyAt(now float64) float64 {
	return now + r.SetupDelay + r.ProcessingDelay
}

// Behavior is the single operation every node type implements:
//
//	step(input_msg_or_none) -> (setup_delay, processing_delay, outputs)
//
// The runtime calls Step(msg) when the node is idle and a message has
// arrived, or Step(nil) to bootstrap a source at scenario start (and
// again at each ready time while the source reports itself Active).
// An error return is a runtime step error (spec.md §7): fatal, logged
// with node name, message ID and simtime by the caller.
type Behavior interface {
	Step(input *simmsg.Message) (Result, error)
}

// ActiveSource is implemented by source behaviors that want to be
// re-invoked with nil at their own ready time for as long as they
// report themselves active. A behavior that does not implement this is
// treated as a single-pulse source: it is bootstrapped once and never
// invoked with nil again.
type ActiveSource interface {
	Active() bool
}

// State is the reservation state of a node: idle, or busy until a
// given simtime.
type State int

const (
	StateIdle State = iota
	StateBusy
)

func (s State) String() string {
	if s == StateBusy {
		return "busy"
	}
	return "idle"
}

// Runtime hosts one node's behavior, FIFO input queue, reservation
// state, optional attached meta-node, and statistics. It has no
// knowledge of the scheduler or link layer; the engine package drives
// it by calling InvokeStep and inspecting/advancing its reservation
// state around scheduled Ready events.
type Runtime struct {
	Name     string
	Behavior Behavior
	Stats    *simstats.NodeStats
	MetaNode position.MetaNode

	queue         *simmsg.Queue
	state         State
	busyUntil     float64
	lastMessageID string
}

// NewRuntime creates an idle runtime wrapping a behavior.
func NewRuntime(name string, behavior Behavior, stats *simstats.NodeStats) *Runtime {
	return &Runtime{
		Name:     name,
		Behavior: behavior,
		Stats:    stats,
		queue:    simmsg.NewQueue(),
		state:    StateIdle,
	}
}

// IsIdle reports whether the node can accept a step invocation now.
func (r *Runtime) IsIdle() bool {
	return r.state == StateIdle
}

// BusyUntil returns the simtime the node's current reservation ends at.
// Only meaningful while IsIdle() is false.
func (r *Runtime) BusyUntil() float64 {
	return r.busyUntil
}

// Enqueue appends an arriving message to the node's FIFO input queue
// and records the arrival in its stats. Per spec.md §3 invariant 2,
// while reserved, incoming messages queue in FIFO order rather than
// being invoked immediately.
func (r *Runtime) Enqueue(msg *simmsg.Message) {
	r.queue.Enqueue(msg)
	r.Stats.RecordArrival(r.queue.Len())
}

// QueueEmpty reports whether the FIFO input queue has no pending messages.
func (r *Runtime) QueueEmpty() bool {
	return r.queue.Empty()
}

// QueueLen returns the current input queue depth.
func (r *Runtime) QueueLen() int {
	return r.queue.Len()
}

// DequeueNext removes and returns the next pending message, or nil.
func (r *Runtime) DequeueNext() *simmsg.Message {
	return r.queue.Dequeue()
}

// Reserve transitions the node to busy until readyAt.
func (r *Runtime) Reserve(readyAt float64) {
	r.state = StateBusy
	r.busyUntil = readyAt
}

// Release transitions the node back to idle.
func (r *Runtime) Release() {
	r.state = StateIdle
	r.busyUntil = 0
}

// InvokeStep calls the behavior's Step, recording the message ID for
// diagnostics if the step errors.
func (r *Runtime) InvokeStep(input *simmsg.Message) (Result, error) {
	if input != nil {
		r.lastMessageID = input.ID
	}
	return r.Behavior.Step(input)
}

// LastMessageID returns the ID of the last message this node's step was
// invoked with, for inclusion in a runtime step error diagnostic.
func (r *Runtime) LastMessageID() string {
	return r.lastMessageID
}

// IsActiveSource reports whether the node's behavior wants to be
// re-invoked with nil at ready time, and if so, whether it currently
// is active.
func IsActiveSource(b Behavior) (active bool, isSource bool) {
	src, ok := b.(ActiveSource)
	if !ok {
		return false, false
	}
	return src.Active(), true
}
