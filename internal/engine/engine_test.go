package engine

import (
	"errors"
	"testing"

	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simlink"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// pulseSource emits a single message at bootstrap and never again.
type pulseSource struct {
	emitted bool
	delay   float64
}

func (p *pulseSource) Step(input *simmsg.Message) (simnode.Result, error) {
	if p.emitted {
		return simnode.Result{}, nil
	}
	p.emitted = true
	msg := simmsg.New("pulse-1", 0, simmsg.Payload{"value": 1.0})
	return simnode.Result{ProcessingDelay: p.delay, Outputs: []*simmsg.Message{msg}}, nil
}

// identityDelay re-emits its input unchanged after a fixed delay.
type identityDelay struct {
	delay float64
}

func (d *identityDelay) Step(input *simmsg.Message) (simnode.Result, error) {
	if input == nil {
		return simnode.Result{}, nil
	}
	out := input.Clone()
	return simnode.Result{ProcessingDelay: d.delay, Outputs: []*simmsg.Message{out}}, nil
}

// countingSink counts every message it receives and never emits.
type countingSink struct {
	received []*simmsg.Message
}

func (s *countingSink) Step(input *simmsg.Message) (simnode.Result, error) {
	if input != nil {
		s.received = append(s.received, input)
	}
	return simnode.Result{}, nil
}

// failingNode always errors, for exercising the abort path.
type failingNode struct{}

func (f *failingNode) Step(input *simmsg.Message) (simnode.Result, error) {
	return simnode.Result{}, errors.New("boom")
}

func TestPulseThroughIdentityDelay(t *testing.T) {
	e := New(Config{EndSimTime: 100}, nil)
	source := &pulseSource{delay: 1}
	delay := &identityDelay{delay: 5}
	sink := &countingSink{}

	e.AddNode("source", source, nil)
	e.AddNode("delay", delay, nil)
	e.AddNode("sink", sink, nil)
	e.AddEdge("source", simlink.NewEdge("delay", nil, nil))
	e.AddEdge("delay", simlink.NewEdge("sink", nil, nil))

	if err := e.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(sink.received) != 1 {
		t.Fatalf("expected sink to receive exactly one message, got %d", len(sink.received))
	}
	got := sink.received[0]
	if got.ID != "pulse-1" {
		t.Fatalf("expected original message identity preserved, got %q", got.ID)
	}
	// source processing delay (1) + zero link delay + delay-node
	// processing delay (5) = 6.
	if got.Hop.TimeSent != 6 {
		t.Fatalf("expected hop time_sent 6, got %g", got.Hop.TimeSent)
	}
}

func TestFanOutWithPredicateGating(t *testing.T) {
	e := New(Config{EndSimTime: 100}, nil)
	source := &pulseSource{}
	highSink := &countingSink{}
	lowSink := &countingSink{}

	highPred, err := predicate.Parse("value > 0")
	if err != nil {
		t.Fatalf("parse predicate: %v", err)
	}
	lowPred, err := predicate.Parse("value < 0")
	if err != nil {
		t.Fatalf("parse predicate: %v", err)
	}

	e.AddNode("source", source, nil)
	e.AddNode("high", highSink, nil)
	e.AddNode("low", lowSink, nil)
	e.AddEdge("source", simlink.NewEdge("high", highPred, nil))
	e.AddEdge("source", simlink.NewEdge("low", lowPred, nil))

	if err := e.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(highSink.received) != 1 {
		t.Fatalf("expected high sink to receive the message, got %d", len(highSink.received))
	}
	if len(lowSink.received) != 0 {
		t.Fatalf("expected low sink to receive nothing, got %d", len(lowSink.received))
	}

	stats := e.Stats().For("source")
	if stats.Dropped != 1 {
		t.Fatalf("expected one edge drop recorded, got %d", stats.Dropped)
	}
}

func TestStepErrorAbortsRun(t *testing.T) {
	e := New(Config{EndSimTime: 100}, nil)
	e.AddNode("source", &pulseSource{}, nil)
	e.AddNode("bad", &failingNode{}, nil)
	e.AddEdge("source", simlink.NewEdge("bad", nil, nil))

	err := e.Run()
	if err == nil {
		t.Fatal("expected step error to abort the run")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected a *StepError, got %T: %v", err, err)
	}
	if stepErr.Node != "bad" {
		t.Fatalf("expected failing node name in error, got %q", stepErr.Node)
	}
}

func TestDispatchWarningOnMissingDestination(t *testing.T) {
	warnings := 0
	e := New(Config{EndSimTime: 100}, func(format string, args ...interface{}) { warnings++ })
	e.AddNode("source", &pulseSource{}, nil)
	e.AddEdge("source", simlink.NewEdge("nowhere", nil, nil))

	if err := e.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if warnings != 1 {
		t.Fatalf("expected exactly one dispatch warning, got %d", warnings)
	}
}

func TestZeroOutgoingEdgesConsumesMessage(t *testing.T) {
	e := New(Config{EndSimTime: 100}, nil)
	e.AddNode("source", &pulseSource{}, nil)

	if err := e.Run(); err != nil {
		t.Fatalf("run with no outgoing edges should not error: %v", err)
	}
	stats := e.Stats().For("source")
	if stats.Dispatched != 1 {
		t.Fatalf("expected dispatch to be recorded even with no edges, got %d", stats.Dispatched)
	}
}

func TestEndSimTimeZeroStillRunsInstantEvents(t *testing.T) {
	e := New(Config{EndSimTime: 0}, nil)
	source := &pulseSource{} // zero delay: emits at simtime 0
	sink := &countingSink{}
	e.AddNode("source", source, nil)
	e.AddNode("sink", sink, nil)
	e.AddEdge("source", simlink.NewEdge("sink", nil, nil))

	if err := e.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(sink.received) != 1 {
		t.Fatalf("expected the zero-delay cascade to complete within end_simtime=0, got %d", len(sink.received))
	}
}
