// Package scenario loads the declarative node/edge graph format of
// spec.md §6 from YAML, resolves DEFAULT fallbacks, and validates edge
// destinations before handing a fully resolved graph to internal/engine.
package scenario

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ersantana/bobcatsim/internal/engine"
	"github.com/ersantana/bobcatsim/internal/eventbus"
	"github.com/ersantana/bobcatsim/internal/nodebehaviors"
	"github.com/ersantana/bobcatsim/internal/position"
	"github.com/ersantana/bobcatsim/internal/predicate"
	"github.com/ersantana/bobcatsim/internal/simlink"
)

const defaultKey = "DEFAULT"

// rawDoc is the top-level YAML shape: every key is either the reserved
// DEFAULT key or a node name mapping to a rawNode body.
type rawDoc map[string]rawNode

// rawNode is one node's YAML body: a type, free-form behavior options,
// and edge entries. It is decoded as a plain map, so a node body can mix
// well-known keys with arbitrary behavior-specific options in one flat
// map.
type rawNode map[string]interface{}

// Node is one fully resolved node: its behavior-construction inputs and
// its outgoing edges, sorted by destination name. The order in which
// edges appear in the scenario file is not kept.
type Node struct {
	Name     string
	Type     string
	Options  nodebehaviors.Options
	Edges    []EdgeSpec
	Position *PositionSpec
}

// PositionSpec is the resolved `position:` attachment of a node: either
// a fixed Geopoint or a TLE-backed Orbital meta-node (spec.md §4.5).
type PositionSpec struct {
	Kind   string // "geopoint" or "orbital"
	LatDeg float64
	LonDeg float64
	AltKm  float64
	Line1  string
	Line2  string
}

// EdgeSpec is one resolved outgoing edge before construction.
type EdgeSpec struct {
	Destination string
	Predicate   string
	Delay       LinkAttrs
}

// LinkAttrs is the nested delay-model configuration an edge entry may
// carry instead of a bare predicate string.
type LinkAttrs struct {
	Kind     string // "constant", "size_rate", "mathis", or "" for none
	Constant float64
	SizeField string
	RateMbps float64
	RTTSeconds float64
	PacketLoss float64
	MSS      float64
	C        float64
}

// Graph is a fully resolved, validated scenario: every node sorted by
// name, with its outgoing edges, ready to be wired into an
// engine.Engine. The order in which nodes appear in the scenario file is
// not kept.
type Graph struct {
	Nodes []Node
}

// Load parses YAML scenario text into a validated Graph. It never
// constructs behaviors or edges against an engine; Wire does that.
func Load(data []byte) (*Graph, error) {
	var doc rawDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scenario: invalid YAML: %w", err)
	}

	def := doc[defaultKey]
	names := make([]string, 0, len(doc))
	for name := range doc {
		if name == defaultKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	reserved := map[string]bool{"type": true, "edges": true, "position": true}

	nodes := make([]Node, 0, len(names))
	declared := make(map[string]bool, len(names))
	for _, name := range names {
		declared[name] = true
	}

	for _, name := range names {
		body := mergeDefaults(doc[name], def)

		nodeType, _ := body["type"].(string)
		if nodeType == "" {
			return nil, fmt.Errorf("scenario: node %q is missing a type", name)
		}

		opts := nodebehaviors.Options{}
		for k, v := range body {
			if reserved[k] {
				continue
			}
			opts[k] = v
		}

		var edgeSpecs []EdgeSpec
		if rawEdges, ok := body["edges"]; ok {
			specs, err := parseEdges(rawEdges)
			if err != nil {
				return nil, fmt.Errorf("scenario: node %q: %w", name, err)
			}
			edgeSpecs = specs
		}

		var posSpec *PositionSpec
		if rawPos, ok := body["position"]; ok {
			spec, err := parsePositionSpec(rawPos)
			if err != nil {
				return nil, fmt.Errorf("scenario: node %q: %w", name, err)
			}
			posSpec = spec
		}

		nodes = append(nodes, Node{Name: name, Type: nodeType, Options: opts, Edges: edgeSpecs, Position: posSpec})
	}

	for _, n := range nodes {
		for _, e := range n.Edges {
			if !declared[e.Destination] {
				return nil, fmt.Errorf("scenario: node %q has an edge to undeclared node %q", n.Name, e.Destination)
			}
		}
	}

	return &Graph{Nodes: nodes}, nil
}

// mergeDefaults overlays DEFAULT's keys under an explicit node body: an
// explicit value always wins over the fallback.
func mergeDefaults(node, def rawNode) rawNode {
	merged := make(rawNode, len(node)+len(def))
	for k, v := range def {
		merged[k] = v
	}
	for k, v := range node {
		merged[k] = v
	}
	return merged
}

func parseEdges(raw interface{}) ([]EdgeSpec, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("edges must be a mapping of destination -> spec")
	}

	destinations := make([]string, 0, len(m))
	for dest := range m {
		destinations = append(destinations, dest)
	}
	sort.Strings(destinations)

	specs := make([]EdgeSpec, 0, len(destinations))
	for _, dest := range destinations {
		spec, err := parseEdgeEntry(dest, m[dest])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseEdgeEntry(dest string, raw interface{}) (EdgeSpec, error) {
	switch v := raw.(type) {
	case bool:
		if !v {
			return EdgeSpec{}, fmt.Errorf("edge to %q set to false has no meaning; omit it instead", dest)
		}
		return EdgeSpec{Destination: dest}, nil
	case string:
		return EdgeSpec{Destination: dest, Predicate: v}, nil
	case map[string]interface{}:
		spec := EdgeSpec{Destination: dest}
		if p, ok := v["predicate"].(string); ok {
			spec.Predicate = p
		}
		spec.Delay = parseLinkAttrs(v)
		return spec, nil
	default:
		return EdgeSpec{}, fmt.Errorf("edge to %q has an unrecognized form %T", dest, raw)
	}
}

func parseLinkAttrs(v map[string]interface{}) LinkAttrs {
	attrs := LinkAttrs{}
	kind, _ := v["delay_model"].(string)
	attrs.Kind = kind
	attrs.Constant = toFloat(v["delay"])
	attrs.SizeField = toString(v["size_field"])
	attrs.RateMbps = toFloat(v["rate_mbps"])
	attrs.RTTSeconds = toFloat(v["rtt_seconds"])
	attrs.PacketLoss = toFloat(v["packet_loss"])
	attrs.MSS = toFloat(v["mss"])
	attrs.C = toFloat(v["mathis_c"])
	return attrs
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// parsePositionSpec resolves a node's `position:` attribute (spec.md
// §4.5): a nested map carrying `kind: geopoint` with lat_deg/lon_deg/
// alt_km, or `kind: orbital` with tle_line1/tle_line2.
func parsePositionSpec(raw interface{}) (*PositionSpec, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("position must be a mapping")
	}

	kind, _ := m["kind"].(string)
	switch kind {
	case "geopoint":
		return &PositionSpec{
			Kind:   kind,
			LatDeg: toFloat(m["lat_deg"]),
			LonDeg: toFloat(m["lon_deg"]),
			AltKm:  toFloat(m["alt_km"]),
		}, nil
	case "orbital":
		line1, _ := m["tle_line1"].(string)
		line2, _ := m["tle_line2"].(string)
		if line1 == "" || line2 == "" {
			return nil, fmt.Errorf("position kind orbital requires tle_line1 and tle_line2")
		}
		return &PositionSpec{Kind: kind, Line1: line1, Line2: line2}, nil
	default:
		return nil, fmt.Errorf("position: unknown kind %q (want geopoint or orbital)", kind)
	}
}

// buildMetaNode constructs the position.MetaNode a PositionSpec
// describes, anchored at epoch.
func buildMetaNode(spec *PositionSpec, epoch time.Time) (position.MetaNode, error) {
	switch spec.Kind {
	case "geopoint":
		return position.NewGeopoint(epoch, spec.LatDeg, spec.LonDeg, spec.AltKm), nil
	case "orbital":
		return position.NewOrbital(epoch, spec.Line1, spec.Line2)
	default:
		return nil, fmt.Errorf("position: unknown kind %q", spec.Kind)
	}
}

// Wire constructs behaviors and edges from a resolved Graph and adds
// them to an engine, in the Graph's (name-sorted) order. rng is the engine-owned
// random stream handed to source behaviors that need it.
func Wire(g *Graph, eng *engine.Engine, rng *rand.Rand) error {
	for _, n := range g.Nodes {
		behavior, err := nodebehaviors.Build(n.Type, n.Options, rng)
		if err != nil {
			return fmt.Errorf("scenario: node %q: %w", n.Name, err)
		}

		var meta position.MetaNode
		if n.Position != nil {
			meta, err = buildMetaNode(n.Position, eng.Epoch())
			if err != nil {
				return fmt.Errorf("scenario: node %q: %w", n.Name, err)
			}
		}

		wireClock(behavior, meta, eng, n.Name)
		eng.AddNode(n.Name, behavior, meta)
	}

	for _, n := range g.Nodes {
		for _, e := range n.Edges {
			pred, err := predicate.Parse(e.Predicate)
			if err != nil {
				return fmt.Errorf("scenario: node %q edge to %q: %w", n.Name, e.Destination, err)
			}
			delay := buildDelay(e.Delay)
			eng.AddEdge(n.Name, simlink.NewEdge(e.Destination, pred, delay))
		}
	}

	return nil
}

// wireClock attaches the engine's clock (and, for propagator nodes
// with a configured visualization window, a CZML persistence sink) to
// behaviors that need to know the current simtime — Behavior.Step
// itself carries no clock parameter (spec.md §4.2).
func wireClock(behavior interface{}, meta position.MetaNode, eng *engine.Engine, nodeName string) {
	switch b := behavior.(type) {
	case *nodebehaviors.Propagator:
		b.MetaNode = meta
		b.Epoch = eng.Epoch()
		b.WithClock(eng.Now)
		if b.CZML {
			b.WithCZMLSink(func(document string) {
				eng.EventBus().Publish(eventbus.New(eventbus.TypeCZML, eng.Now(), nodeName, map[string]interface{}{
					"document": document,
				}))
			})
		}
	case *nodebehaviors.AndGate:
		b.WithClock(eng.Now)
	}
}

func buildDelay(attrs LinkAttrs) simlink.DelayFunc {
	switch attrs.Kind {
	case "size_rate":
		return simlink.SizeRateDelay(attrs.SizeField, attrs.RateMbps)
	case "mathis":
		return simlink.MathisDelay(attrs.SizeField, attrs.RTTSeconds, attrs.PacketLoss, attrs.MSS, attrs.C)
	default:
		return simlink.ConstantDelay(attrs.Constant)
	}
}
