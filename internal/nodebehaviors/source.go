// Package nodebehaviors is a reference library of node behaviors
// implementing simnode.Behavior: sources, taggers, delays, gates, and
// propagators, enough to build and exercise the scenarios spec.md §8
// describes. A scenario file names one of these types per node; the
// engine itself has no dependency on this package.
package nodebehaviors

import (
	"fmt"
	"math/rand"

	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// RandomSource emits a message every Interval seconds (with optional
// jitter drawn from RNG), for as long as Count is nonzero (Count<0
// means unbounded). It implements simnode.ActiveSource so the engine
// re-invokes it with nil at its own ready time.
type RandomSource struct {
	Interval float64
	Jitter   float64
	Count    int
	RNG      *rand.Rand
	Payload  func(seq int) simmsg.Payload

	emitted int
	seq     int
}

func (s *RandomSource) Step(_ *simmsg.Message) (simnode.Result, error) {
	if s.Count == 0 {
		return simnode.Result{}, nil
	}

	payload := simmsg.Payload{}
	if s.Payload != nil {
		payload = s.Payload(s.seq)
	}
	msg := simmsg.New(fmt.Sprintf("src-%d", s.seq), 0, payload)
	s.seq++
	s.emitted++

	delay := s.Interval
	if s.Jitter != 0 && s.RNG != nil {
		delay += (s.RNG.Float64()*2 - 1) * s.Jitter
		if delay < 0 {
			delay = 0
		}
	}

	return simnode.Result{ProcessingDelay: delay, Outputs: []*simmsg.Message{msg}}, nil
}

// Active reports whether this source should still be re-invoked.
func (s *RandomSource) Active() bool {
	return s.Count < 0 || s.emitted < s.Count
}

// PulseSource emits exactly one message at bootstrap and then goes
// idle permanently. It does not implement simnode.ActiveSource, so the
// engine treats it as single-pulse by construction.
type PulseSource struct {
	ID      string
	Delay   float64
	Payload simmsg.Payload

	emitted bool
}

func (p *PulseSource) Step(_ *simmsg.Message) (simnode.Result, error) {
	if p.emitted {
		return simnode.Result{}, nil
	}
	p.emitted = true
	id := p.ID
	if id == "" {
		id = "pulse"
	}
	msg := simmsg.New(id, 0, p.Payload)
	return simnode.Result{ProcessingDelay: p.Delay, Outputs: []*simmsg.Message{msg}}, nil
}
