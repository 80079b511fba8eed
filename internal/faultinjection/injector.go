// Package faultinjection schedules synthetic runtime faults against a
// node's behavior so the engine's error and warning paths (spec.md §7)
// can be exercised deterministically in tests, without hand-writing a
// misbehaving node type for every scenario. It is adapted from a
// node-liveness failure injector (crash/partition/delay) retargeted at
// this engine's own error taxonomy: a step error, a link drop, and a
// real-time stall.
package faultinjection

import (
	"fmt"
	"time"

	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// Kind identifies which error path a Fault exercises.
type Kind int

const (
	// StepErrorFault makes the wrapped behavior return an error instead
	// of delegating, the next time it would be invoked at or after At.
	StepErrorFault Kind = iota
	// StallFault sleeps Duration of wall-clock time before delegating,
	// for driving a real-time pacer into an overrun.
	StallFault
)

// Fault describes one scheduled condition.
type Fault struct {
	Kind     Kind
	At       float64 // simtime at or after which the fault fires
	Duration time.Duration
	fired    bool
}

// Clock reports the current simtime; engine.Engine.Now satisfies this.
type Clock func() float64

// Wrap decorates a node's real behavior with a schedule of faults,
// checked (in order) against the current simtime on every Step
// invocation. At most one fault fires per Step call.
func Wrap(behavior simnode.Behavior, faults []*Fault, clock Clock) simnode.Behavior {
	return &faultyBehavior{inner: behavior, faults: faults, clock: clock}
}

type faultyBehavior struct {
	inner  simnode.Behavior
	faults []*Fault
	clock  Clock
}

func (f *faultyBehavior) Step(input *simmsg.Message) (simnode.Result, error) {
	now := f.clock()
	for _, fault := range f.faults {
		if fault.fired || now < fault.At {
			continue
		}
		fault.fired = true

		switch fault.Kind {
		case StepErrorFault:
			return simnode.Result{}, fmt.Errorf("injected fault: step error at simtime %g", fault.At)
		case StallFault:
			time.Sleep(fault.Duration)
			return f.inner.Step(input)
		}
	}
	return f.inner.Step(input)
}

// DroppingPredicate wraps a predicate so it evaluates false once
// simtime reaches At, regardless of message content — a synthetic link
// drop for exercising the edge-drop accounting path.
func DroppingPredicate(inner predicate.Predicate, at float64) predicate.Predicate {
	if inner == nil {
		inner = predicate.AlwaysTrue
	}
	return func(msg *simmsg.Message, simTime float64) bool {
		if simTime >= at {
			return false
		}
		return inner(msg, simTime)
	}
}
