// Package simlink implements the link/routing layer: for each output a
// node emits, it enumerates that node's outgoing edges in definition
// order, gates each by a predicate, and computes a delivery delay.
package simlink

import (
	"math"

	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
)

// DelayFunc computes a link's delivery delay for a given message.
type DelayFunc func(msg *simmsg.Message) float64

// ConstantDelay returns a DelayFunc that always yields d, the default
// link_delay model of spec.md §4.3.
func ConstantDelay(d float64) DelayFunc {
	return func(_ *simmsg.Message) float64 { return d }
}

// SizeRateDelay models delay as size/rate: the named payload field
// (in megabits) divided by rateMbps (megabits/second).
func SizeRateDelay(sizeField string, rateMbps float64) DelayFunc {
	return func(msg *simmsg.Message) float64 {
		if rateMbps <= 0 {
			return 0
		}
		v, ok := msg.Get(sizeField)
		if !ok {
			return 0
		}
		size, ok := simmsg.Float64(v)
		if !ok {
			return 0
		}
		return size / rateMbps
	}
}

// MathisDelay implements the TCP-Mathis-equation delay:
//
//	size * RTT * sqrt(packetLoss) / (MSS * C)
//
// all in consistent units (size and MSS in the same unit, RTT in
// seconds, C the Mathis constant ~1.22). A zero packetLoss yields zero
// delay contribution from loss (no retransmission pressure modeled).
func MathisDelay(sizeField string, rttSeconds, packetLoss, mss, c float64) DelayFunc {
	if c <= 0 {
		c = 1.22
	}
	return func(msg *simmsg.Message) float64 {
		if mss <= 0 {
			return 0
		}
		v, ok := msg.Get(sizeField)
		if !ok {
			return 0
		}
		size, ok := simmsg.Float64(v)
		if !ok {
			return 0
		}
		return size * rttSeconds * math.Sqrt(packetLoss) / (mss * c)
	}
}

// Edge is one outgoing link from a node, in the order it was declared
// in the scenario. Predicate defaults to predicate.AlwaysTrue; Delay
// defaults to ConstantDelay(0).
type Edge struct {
	Destination string
	Predicate   predicate.Predicate
	Delay       DelayFunc
}

// NewEdge builds an edge, filling in the spec.md §3 defaults for a nil
// predicate or delay function.
func NewEdge(destination string, pred predicate.Predicate, delay DelayFunc) *Edge {
	if pred == nil {
		pred = predicate.AlwaysTrue
	}
	if delay == nil {
		delay = ConstantDelay(0)
	}
	return &Edge{Destination: destination, Predicate: pred, Delay: delay}
}

// Scheduled is called for each edge whose predicate matched, with a
// deep copy of the message (per the engine's deep-copy-on-edge default)
// and the simtime it will arrive at the destination.
type Scheduled func(edge *Edge, copy *simmsg.Message, arrivalSimTime float64)

// Dropped is called for each edge whose predicate evaluated false.
type Dropped func(edge *Edge)

// Dispatch enumerates edges in definition order and, for each one whose
// predicate matches msg at now, computes the delay and invokes
// scheduled with an independent deep copy (spec.md §3 invariant 4: each
// outgoing message traverses every outgoing link independently). Edges
// that don't match invoke dropped instead. Fan-out ordering across
// multiple matching edges is deterministic: callers assign increasing
// monotonic sequence numbers to the resulting arrivals in the order
// scheduled is invoked.
func Dispatch(edges []*Edge, msg *simmsg.Message, now float64, scheduled Scheduled, dropped Dropped) {
	for _, edge := range edges {
		if !edge.Predicate(msg, now) {
			if dropped != nil {
				dropped(edge)
			}
			continue
		}

		delay := edge.Delay(msg)
		if delay < 0 {
			delay = 0
		}

		copy := msg.Clone()
		copy.Hop.NextHopDelay = delay

		scheduled(edge, copy, now+delay)
	}
}
