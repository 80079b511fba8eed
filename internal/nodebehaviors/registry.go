package nodebehaviors

import (
	"fmt"
	"math/rand"

	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// Options is a scenario node's raw attribute map as decoded from YAML
// (spec.md §6.1's DEFAULT-resolved node options); the typed accessors
// below coerce integer and float values to the type each option needs.
type Options map[string]interface{}

func (o Options) float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
		if n, ok := v.(int); ok {
			return float64(n)
		}
	}
	return def
}

func (o Options) int(key string, def int) int {
	if v, ok := o[key]; ok {
		if f, ok := v.(int); ok {
			return f
		}
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

func (o Options) str(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func (o Options) bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (o Options) strSlice(key string) []string {
	v, ok := o[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Constructor builds one node behavior from its scenario options.
type Constructor func(opts Options, rng *rand.Rand) (simnode.Behavior, error)

// Registry maps a scenario node_type string to its constructor.
var Registry = map[string]Constructor{
	"RandomSource": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		return &RandomSource{
			Interval: opts.float("interval", 1),
			Jitter:   opts.float("jitter", 0),
			Count:    opts.int("count", -1),
			RNG:      rng,
		}, nil
	},
	"PulseSource": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		return &PulseSource{
			ID:    opts.str("id", ""),
			Delay: opts.float("delay", 0),
		}, nil
	},
	"DelayNode": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		return &DelayNode{
			SetupDelay:      opts.float("setup_delay", 0),
			ProcessingDelay: opts.float("processing_delay", 0),
		}, nil
	},
	"KeyTagger": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		field := opts.str("field", "")
		if field == "" {
			return nil, fmt.Errorf("KeyTagger requires a field option")
		}
		return &KeyTagger{
			Field: field,
			Value: simmsg.Field(opts["value"]),
			Delay: opts.float("delay", 0),
		}, nil
	},
	"Sink": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		return &Sink{}, nil
	},
	"AndGate": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		conditionStrs := opts.strSlice("conditions")
		conditions := make([]predicate.Predicate, 0, len(conditionStrs))
		for _, c := range conditionStrs {
			cond, err := predicate.Parse(c)
			if err != nil {
				return nil, fmt.Errorf("AndGate: condition %q: %w", c, err)
			}
			conditions = append(conditions, cond)
		}
		order := AccumFIFO
		if !opts.bool("blocked_messages_FIFO", true) {
			order = AccumLIFO
		}
		return &AndGate{
			Conditions:      conditions,
			Order:           order,
			ProcessingDelay: opts.float("processing_delay", 0),
			DropBlocked:     opts.bool("drop_blocked_messages", false),
		}, nil
	},
	"Maximizer": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		return &Maximizer{
			ListField:   opts.str("list_field", "values"),
			OutputField: opts.str("output_field", "max"),
			Delay:       opts.float("delay", 0),
		}, nil
	},
	"Propagator": func(opts Options, rng *rand.Rand) (simnode.Behavior, error) {
		return &Propagator{
			Delay:        opts.float("delay", 0),
			ResultsField: opts.str("results_field", "Propagator_Results"),
			WindowStart:  opts.float("window_start", 0),
			WindowEnd:    opts.float("window_end", 0),
			WindowStep:   opts.float("window_step", 0),
			CZML:         opts.bool("czml", false),
			CZMLID:       opts.str("czml_id", ""),
		}, nil
	},
}

// Build constructs a behavior by node_type, returning an error for an
// unregistered type (a scenario load-time fatal error, per spec.md §7).
func Build(nodeType string, opts Options, rng *rand.Rand) (simnode.Behavior, error) {
	ctor, ok := Registry[nodeType]
	if !ok {
		return nil, fmt.Errorf("nodebehaviors: unknown node_type %q", nodeType)
	}
	return ctor(opts, rng)
}
