package nodebehaviors

import (
	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// AccumOrder controls the replay order of messages an AndGate held onto
// while waiting for its conditions to become true.
type AccumOrder int

const (
	// AccumFIFO replays stored messages in arrival order.
	AccumFIFO AccumOrder = iota
	// AccumLIFO replays the most recently stored message first.
	AccumLIFO
)

// AndGate is the gate-style node of spec.md §4.2: it maintains one
// satisfied/unsatisfied flag per condition, updated from every message
// it sees. While any condition remains unsatisfied, an arriving message
// either gets dropped (if DropBlocked and it didn't satisfy a pending
// condition) or held. Once the message that completes the last
// condition arrives, the gate emits every held message plus that
// triggering message, in Order, and resets for the next round. A gate
// with no conditions is always-open (spec.md §8): every message passes
// through immediately.
type AndGate struct {
	Conditions      []predicate.Predicate
	Order           AccumOrder
	DropBlocked     bool
	ProcessingDelay float64

	now func() float64 // supplies SimTime for conditions that reference it

	satisfied []bool
	stored    []*simmsg.Message
}

// WithClock lets the engine supply the current sim-time for conditions
// referencing SimTime, since Step itself is not told what time it is.
func (g *AndGate) WithClock(now func() float64) *AndGate {
	g.now = now
	return g
}

func (g *AndGate) Step(input *simmsg.Message) (simnode.Result, error) {
	if input == nil {
		return simnode.Result{}, nil
	}

	if len(g.Conditions) == 0 {
		return simnode.Result{ProcessingDelay: g.ProcessingDelay, Outputs: []*simmsg.Message{input.Clone()}}, nil
	}

	if g.satisfied == nil {
		g.satisfied = make([]bool, len(g.Conditions))
	}

	var simTime float64
	if g.now != nil {
		simTime = g.now()
	}

	matchedAny := false
	for i, cond := range g.Conditions {
		if g.satisfied[i] {
			continue
		}
		if cond(input, simTime) {
			g.satisfied[i] = true
			matchedAny = true
		}
	}

	if !matchedAny && g.DropBlocked {
		return simnode.Result{}, nil
	}

	if g.Order == AccumLIFO {
		g.stored = append([]*simmsg.Message{input.Clone()}, g.stored...)
	} else {
		g.stored = append(g.stored, input.Clone())
	}

	if !allSatisfied(g.satisfied) {
		return simnode.Result{}, nil
	}

	outputs := g.stored
	g.stored = nil
	g.satisfied = make([]bool, len(g.Conditions))
	return simnode.Result{ProcessingDelay: g.ProcessingDelay, Outputs: outputs}, nil
}

func allSatisfied(flags []bool) bool {
	for _, f := range flags {
		if !f {
			return false
		}
	}
	return true
}
