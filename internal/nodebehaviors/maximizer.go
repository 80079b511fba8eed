package nodebehaviors

import (
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// Maximizer reads a list-valued payload field and re-emits the input
// with OutputField set to the maximum numeric element, dropping
// non-numeric entries silently.
type Maximizer struct {
	ListField   string
	OutputField string
	Delay       float64
}

func (m *Maximizer) Step(input *simmsg.Message) (simnode.Result, error) {
	if input == nil {
		return simnode.Result{}, nil
	}

	out := input.Clone()

	raw, ok := input.Get(m.ListField)
	if ok {
		if list, ok := raw.([]simmsg.Field); ok {
			var max float64
			found := false
			for _, v := range list {
				n, ok := simmsg.Float64(v)
				if !ok {
					continue
				}
				if !found || n > max {
					max = n
					found = true
				}
			}
			if found {
				out.Set(m.OutputField, max)
			}
		}
	}

	return simnode.Result{ProcessingDelay: m.Delay, Outputs: []*simmsg.Message{out}}, nil
}
