package simlink

import (
	"testing"

	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
)

func TestDispatchFanOutOrderAndDeepCopy(t *testing.T) {
	redPred, _ := predicate.Parse(`color == "red"`)
	bluePred, _ := predicate.Parse(`color == "blue"`)

	edges := []*Edge{
		NewEdge("R", redPred, ConstantDelay(0)),
		NewEdge("B", bluePred, ConstantDelay(0)),
	}

	msg := simmsg.New("a", 1, simmsg.Payload{"color": "red"})

	var scheduledTo []string
	var droppedAt []string

	Dispatch(edges, msg, 1, func(edge *Edge, copy *simmsg.Message, arrival float64) {
		scheduledTo = append(scheduledTo, edge.Destination)
		copy.Set("color", "mutated")
	}, func(edge *Edge) {
		droppedAt = append(droppedAt, edge.Destination)
	})

	if len(scheduledTo) != 1 || scheduledTo[0] != "R" {
		t.Fatalf("expected only R scheduled, got %v", scheduledTo)
	}
	if len(droppedAt) != 1 || droppedAt[0] != "B" {
		t.Fatalf("expected B dropped, got %v", droppedAt)
	}

	if v, _ := msg.Get("color"); v != "red" {
		t.Fatalf("original message mutated by edge copy: %v", v)
	}
}

func TestSizeRateDelay(t *testing.T) {
	delay := SizeRateDelay("size_mbits", 10)
	msg := simmsg.New("a", 0, simmsg.Payload{"size_mbits": 50.0})
	if got := delay(msg); got != 5 {
		t.Fatalf("expected delay 5, got %g", got)
	}
}

func TestMathisDelayZeroLossIsZero(t *testing.T) {
	delay := MathisDelay("size_mbits", 0.1, 0, 1500, 1.22)
	msg := simmsg.New("a", 0, simmsg.Payload{"size_mbits": 100.0})
	if got := delay(msg); got != 0 {
		t.Fatalf("expected 0 delay at zero loss, got %g", got)
	}
}

func TestConstantDelayDefault(t *testing.T) {
	edge := NewEdge("X", nil, nil)
	msg := simmsg.New("a", 0, nil)
	if !edge.Predicate(msg, 0) {
		t.Fatal("expected default predicate to always be true")
	}
	if d := edge.Delay(msg); d != 0 {
		t.Fatalf("expected default delay 0, got %g", d)
	}
}
