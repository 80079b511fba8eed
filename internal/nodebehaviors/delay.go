package nodebehaviors

import (
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// DelayNode re-emits its input unchanged after SetupDelay +
// ProcessingDelay seconds, modeling a fixed pipeline stage (generic
// tasking/collection/processing/downlink/cross-link hop of spec.md §1).
type DelayNode struct {
	SetupDelay      float64
	ProcessingDelay float64
}

func (d *DelayNode) Step(input *simmsg.Message) (simnode.Result, error) {
	if input == nil {
		return simnode.Result{}, nil
	}
	out := input.Clone()
	return simnode.Result{
		SetupDelay:      d.SetupDelay,
		ProcessingDelay: d.ProcessingDelay,
		Outputs:         []*simmsg.Message{out},
	}, nil
}

// KeyTagger re-emits its input with one field set (or overwritten) to a
// fixed value, modeling a cheap metadata-stamping stage.
type KeyTagger struct {
	Field string
	Value simmsg.Field
	Delay float64
}

func (k *KeyTagger) Step(input *simmsg.Message) (simnode.Result, error) {
	if input == nil {
		return simnode.Result{}, nil
	}
	out := input.Clone()
	out.Set(k.Field, k.Value)
	return simnode.Result{ProcessingDelay: k.Delay, Outputs: []*simmsg.Message{out}}, nil
}

// Sink counts received messages and never emits. It is the default
// behavior for a scenario's terminal nodes.
type Sink struct {
	Count uint64
}

func (s *Sink) Step(input *simmsg.Message) (simnode.Result, error) {
	if input != nil {
		s.Count++
	}
	return simnode.Result{}, nil
}
