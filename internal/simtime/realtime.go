package simtime

import (
	"fmt"
	"time"
)

// RealTimeConfig configures the optional wall-clock pacing adapter of
// spec.md §4.1. Factor>0 maps one simtime second to 1/Factor wall-clock
// seconds (Factor=1.0 is real-time). Strict mode aborts the run if
// wall-clock has already passed the paced target by more than Slack;
// non-strict mode warns once and continues at best effort.
type RealTimeConfig struct {
	Enabled bool
	Strict  bool
	Factor  float64
	Slack   time.Duration
}

// Pacer wraps a Scheduler so Run's dispatch loop sleeps between events
// until wall-clock catches up with epoch + due_simtime/factor. Pacing
// never changes simtime semantics, only when Run's handler is invoked.
type Pacer struct {
	cfg     RealTimeConfig
	epoch   time.Time
	warned  bool
}

// NewPacer binds a real-time configuration to a wall-clock epoch (the
// instant simtime=0 begins pacing from).
func NewPacer(cfg RealTimeConfig, epoch time.Time) *Pacer {
	if cfg.Factor <= 0 {
		cfg.Factor = 1.0
	}
	return &Pacer{cfg: cfg, epoch: epoch}
}

// ErrTooSlow is returned by Wait when strict real-time mode detects an
// overrun beyond the configured slack.
type ErrTooSlow struct {
	Target time.Time
	Actual time.Time
	Slack  time.Duration
}

func (e *ErrTooSlow) Error() string {
	return fmt.Sprintf("simulation too slow: wall-clock %s is past paced target %s by more than slack %s",
		e.Actual.Format(time.RFC3339Nano), e.Target.Format(time.RFC3339Nano), e.Slack)
}

// Wait blocks (if needed) until wall-clock reaches the paced target for
// dueSimTime. In strict mode, an overrun beyond cfg.Slack returns
// ErrTooSlow instead of sleeping. In non-strict mode, an overrun emits
// onWarn once (nil-safe) and the call returns immediately.
func (p *Pacer) Wait(dueSimTime float64, onWarn func(string)) error {
	if !p.cfg.Enabled {
		return nil
	}

	target := p.epoch.Add(time.Duration(dueSimTime / p.cfg.Factor * float64(time.Second)))
	now := time.Now()

	if now.Before(target) {
		time.Sleep(target.Sub(now))
		return nil
	}

	overrun := now.Sub(target)
	if overrun <= p.cfg.Slack {
		return nil
	}

	if p.cfg.Strict {
		return &ErrTooSlow{Target: target, Actual: now, Slack: p.cfg.Slack}
	}

	if !p.warned && onWarn != nil {
		onWarn(fmt.Sprintf("real-time overrun: %s behind pace (slack %s); continuing at best effort", overrun, p.cfg.Slack))
		p.warned = true
	}
	return nil
}
