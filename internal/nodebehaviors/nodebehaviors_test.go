package nodebehaviors

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ersantana/bobcatsim/internal/position"
	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
)

func TestPulseSourceEmitsOnceThenIdle(t *testing.T) {
	s := &PulseSource{ID: "p1", Delay: 2}

	result, err := s.Step(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected one output, got %d", len(result.Outputs))
	}

	result, err = s.Step(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 0 {
		t.Fatalf("expected no output on second invocation, got %d", len(result.Outputs))
	}
}

func TestRandomSourceActiveUntilCount(t *testing.T) {
	s := &RandomSource{Interval: 1, Count: 2, RNG: rand.New(rand.NewSource(1))}

	if !s.Active() {
		t.Fatal("expected active before any emissions")
	}
	if _, err := s.Step(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Active() {
		t.Fatal("expected still active after one of two emissions")
	}
	if _, err := s.Step(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Active() {
		t.Fatal("expected inactive after reaching count")
	}
}

func TestDelayNodePreservesPayload(t *testing.T) {
	d := &DelayNode{SetupDelay: 1, ProcessingDelay: 2}
	in := simmsg.New("m1", 0, simmsg.Payload{"x": 1.0})

	result, err := d.Step(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected one output, got %d", len(result.Outputs))
	}
	out := result.Outputs[0]
	if out == in {
		t.Fatal("expected a clone, not the same pointer")
	}
	if v, _ := out.Get("x"); v != 1.0 {
		t.Fatalf("expected payload preserved, got %v", v)
	}
	if result.SetupDelay+result.ProcessingDelay != 3 {
		t.Fatalf("expected total delay 3, got %g", result.SetupDelay+result.ProcessingDelay)
	}
}

func TestKeyTaggerSetsField(t *testing.T) {
	k := &KeyTagger{Field: "tag", Value: "stamped"}
	in := simmsg.New("m1", 0, simmsg.Payload{})

	result, _ := k.Step(in)
	v, ok := result.Outputs[0].Get("tag")
	if !ok || v != "stamped" {
		t.Fatalf("expected tag=stamped, got %v (ok=%v)", v, ok)
	}
}

func mustParse(t *testing.T, expr string) predicate.Predicate {
	t.Helper()
	p, err := predicate.Parse(expr)
	if err != nil {
		t.Fatalf("predicate.Parse(%q): %v", expr, err)
	}
	return p
}

// TestAndGateAccumulatesUntilAllConditionsTrue reproduces spec.md §8's
// S3: conditions [x==1, y==1], FIFO accumulation, drop_blocked=false.
// Messages {x:1}, {y:0}, {y:1} arrive in that order; only the third
// satisfies the last condition, at which point all three held messages
// are emitted in arrival order.
func TestAndGateAccumulatesUntilAllConditionsTrue(t *testing.T) {
	g := &AndGate{
		Conditions: []predicate.Predicate{mustParse(t, "x == 1"), mustParse(t, "y == 1")},
		Order:      AccumFIFO,
	}

	m1 := simmsg.New("m1", 1, simmsg.Payload{"x": 1.0})
	if result, err := g.Step(m1); err != nil || len(result.Outputs) != 0 {
		t.Fatalf("expected no output after first message, got outputs=%v err=%v", result.Outputs, err)
	}

	m2 := simmsg.New("m2", 2, simmsg.Payload{"y": 0.0})
	if result, err := g.Step(m2); err != nil || len(result.Outputs) != 0 {
		t.Fatalf("expected no output after second message, got outputs=%v err=%v", result.Outputs, err)
	}

	m3 := simmsg.New("m3", 3, simmsg.Payload{"y": 1.0})
	result, err := g.Step(m3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 3 {
		t.Fatalf("expected all three held messages emitted, got %d", len(result.Outputs))
	}
	wantIDs := []string{"m1", "m2", "m3"}
	for i, out := range result.Outputs {
		if out.ID != wantIDs[i] {
			t.Fatalf("output %d: expected ID %s, got %s", i, wantIDs[i], out.ID)
		}
	}
}

func TestAndGateNoConditionsAlwaysOpen(t *testing.T) {
	g := &AndGate{}
	in := simmsg.New("m1", 0, simmsg.Payload{"anything": 1.0})

	result, err := g.Step(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 1 || result.Outputs[0].ID != "m1" {
		t.Fatalf("expected the message to pass straight through, got %v", result.Outputs)
	}
}

func TestAndGateDropBlockedDropsNonMatchingMessages(t *testing.T) {
	g := &AndGate{
		Conditions:  []predicate.Predicate{mustParse(t, "x == 1"), mustParse(t, "y == 1")},
		DropBlocked: true,
	}

	m1 := simmsg.New("m1", 1, simmsg.Payload{"x": 1.0})
	g.Step(m1)

	blocked := simmsg.New("m2", 2, simmsg.Payload{"z": 5.0})
	result, err := g.Step(blocked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 0 {
		t.Fatalf("expected the non-matching message to be dropped, got %d outputs", len(result.Outputs))
	}

	m3 := simmsg.New("m3", 3, simmsg.Payload{"y": 1.0})
	result, err = g.Step(m3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Outputs) != 2 {
		t.Fatalf("expected the two non-dropped messages emitted, got %d", len(result.Outputs))
	}
}

func TestPropagatorSamplesWindow(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	geo := position.NewGeopoint(epoch, 0, 0, 0)

	p := &Propagator{
		MetaNode:     geo,
		ResultsField: "Propagator_Results",
		WindowStart:  0,
		WindowEnd:    60,
		WindowStep:   30,
		Epoch:        epoch,
	}
	p.WithClock(func() float64 { return 0 })

	in := simmsg.New("m1", 0, simmsg.Payload{})
	result, err := p.Step(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Outputs[0]
	v, ok := out.Get("Propagator_Results")
	if !ok {
		t.Fatal("expected Propagator_Results to be set")
	}
	samples, ok := v.([]simmsg.Field)
	if !ok || len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %v", v)
	}
}

func TestPropagatorEmitsCZMLWhenConfigured(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	geo := position.NewGeopoint(epoch, 0, 0, 0)

	var captured string
	p := &Propagator{
		MetaNode:    geo,
		WindowStart: 0,
		WindowEnd:   30,
		WindowStep:  30,
		CZML:        true,
		CZMLID:      "sat-1",
		Epoch:       epoch,
	}
	p.WithClock(func() float64 { return 0 })
	p.WithCZMLSink(func(doc string) { captured = doc })

	if _, err := p.Step(simmsg.New("m1", 0, simmsg.Payload{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured == "" {
		t.Fatal("expected a CZML document to be emitted")
	}
}

func TestMaximizerPicksMax(t *testing.T) {
	m := &Maximizer{ListField: "values", OutputField: "max"}
	in := simmsg.New("m1", 0, simmsg.Payload{
		"values": []simmsg.Field{1.0, 5.0, 3.0},
	})

	result, err := m.Step(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := result.Outputs[0].Get("max")
	if !ok || v != 5.0 {
		t.Fatalf("expected max=5.0, got %v (ok=%v)", v, ok)
	}
}

func TestBuildUnknownTypeErrors(t *testing.T) {
	_, err := Build("NoSuchThing", Options{}, nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered node_type")
	}
}

func TestBuildDelayNode(t *testing.T) {
	b, err := Build("DelayNode", Options{"setup_delay": 1.0, "processing_delay": 2.0}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.(*DelayNode); !ok {
		t.Fatalf("expected *DelayNode, got %T", b)
	}
}
