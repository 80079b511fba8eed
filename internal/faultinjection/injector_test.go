package faultinjection

import (
	"testing"
	"time"

	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

type okBehavior struct{}

func (okBehavior) Step(input *simmsg.Message) (simnode.Result, error) {
	return simnode.Result{}, nil
}

func TestStepErrorFaultFiresAtScheduledTime(t *testing.T) {
	now := 0.0
	clock := func() float64 { return now }
	wrapped := Wrap(okBehavior{}, []*Fault{{Kind: StepErrorFault, At: 5}}, clock)

	if _, err := wrapped.Step(nil); err != nil {
		t.Fatalf("expected no error before the fault's scheduled time, got %v", err)
	}

	now = 5
	if _, err := wrapped.Step(nil); err == nil {
		t.Fatal("expected the step error fault to fire")
	}

	// A fault only fires once.
	if _, err := wrapped.Step(nil); err != nil {
		t.Fatalf("expected the fault not to fire a second time, got %v", err)
	}
}

func TestStallFaultSleeps(t *testing.T) {
	clock := func() float64 { return 1 }
	wrapped := Wrap(okBehavior{}, []*Fault{{Kind: StallFault, At: 0, Duration: 20 * time.Millisecond}}, clock)

	start := time.Now()
	if _, err := wrapped.Step(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("expected the stall fault to sleep at least its duration")
	}
}

func TestDroppingPredicateDropsAfterThreshold(t *testing.T) {
	pred := DroppingPredicate(predicate.AlwaysTrue, 10)
	msg := simmsg.New("m1", 0, simmsg.Payload{})

	if !pred(msg, 5) {
		t.Fatal("expected predicate to still pass before the drop threshold")
	}
	if pred(msg, 10) {
		t.Fatal("expected predicate to drop at the threshold")
	}
}
