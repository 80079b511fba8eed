package nodebehaviors

import (
	"encoding/json"
	"time"

	"github.com/ersantana/bobcatsim/internal/position"
	"github.com/ersantana/bobcatsim/internal/simmsg"
	"github.com/ersantana/bobcatsim/internal/simnode"
)

// Propagator stamps an input message with its attached MetaNode's
// geodetic position at the current sim-time, modeling a sensor or
// ground station whose tasking/collection decision depends on where it
// is. MetaNode is set by the engine from the scenario's node attachment
// rather than by the behavior itself.
//
// When WindowStep is configured, Propagator additionally samples the
// MetaNode's inertial coordinates across [WindowStart, WindowEnd] and
// attaches the resulting (sim_t, x, y, z) tuples under ResultsField
// (spec.md §4.5). If CZML is set, it also hands a CZML document built
// from those samples to EmitCZML for the engine to persist.
type Propagator struct {
	MetaNode position.MetaNode
	Delay    float64

	ResultsField string
	WindowStart  float64
	WindowEnd    float64
	WindowStep   float64

	CZML   bool
	CZMLID string
	Epoch  time.Time

	now      func() float64
	emitCZML func(document string)
}

// WithClock lets the engine supply the current sim-time, since Step
// itself is not told what time it is invoked at.
func (p *Propagator) WithClock(now func() float64) *Propagator {
	p.now = now
	return p
}

// WithCZMLSink lets the engine receive a built CZML document for
// persisting to czml/<network>/<node>.czml, since the behavior itself
// has no notion of a result directory or network name.
func (p *Propagator) WithCZMLSink(sink func(document string)) *Propagator {
	p.emitCZML = sink
	return p
}

func (p *Propagator) Step(input *simmsg.Message) (simnode.Result, error) {
	if input == nil {
		return simnode.Result{}, nil
	}

	out := input.Clone()
	if p.MetaNode != nil && p.now != nil {
		sample := p.MetaNode.Position(p.now())
		out.Set("lat_deg", sample.LatDeg)
		out.Set("lon_deg", sample.LonDeg)
		out.Set("alt_km", sample.AltKm)
		out.Set("velocity_km_s", sample.Velocity)
	}

	if coord, ok := p.MetaNode.(position.Coordinator); ok && p.WindowStep > 0 && p.WindowEnd >= p.WindowStart {
		samples := p.sampleWindow(coord)
		out.Set(p.resultsField(), samples)
		if p.CZML && p.emitCZML != nil {
			p.emitCZML(p.buildCZML(samples))
		}
	}

	return simnode.Result{ProcessingDelay: p.Delay, Outputs: []*simmsg.Message{out}}, nil
}

func (p *Propagator) resultsField() string {
	if p.ResultsField == "" {
		return "Propagator_Results"
	}
	return p.ResultsField
}

// sampleWindow samples coord's inertial coordinates at WindowStep
// intervals across [WindowStart, WindowEnd], inclusive of the end point.
func (p *Propagator) sampleWindow(coord position.Coordinator) []simmsg.Field {
	var samples []simmsg.Field
	for t := p.WindowStart; t <= p.WindowEnd+p.WindowStep/2; t += p.WindowStep {
		v := coord.Coords(t)
		samples = append(samples, map[string]simmsg.Field{
			"sim_t": t,
			"x":     v.X,
			"y":     v.Y,
			"z":     v.Z,
		})
	}
	return samples
}

type czmlPacket struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Version   string         `json:"version,omitempty"`
	Billboard *czmlBillboard `json:"billboard,omitempty"`
	Label     *czmlLabel     `json:"label,omitempty"`
	Path      *czmlPath      `json:"path,omitempty"`
	Position  *czmlPosition  `json:"position,omitempty"`
}

type czmlBillboard struct {
	Image string  `json:"image"`
	Scale float64 `json:"scale"`
}

type czmlLabel struct {
	Text string `json:"text"`
	Show bool   `json:"show"`
}

type czmlPath struct {
	Show  bool `json:"show"`
	Width int  `json:"width"`
}

type czmlPosition struct {
	Epoch     string    `json:"epoch"`
	Cartesian []float64 `json:"cartesian"`
}

// buildCZML renders samples (sim_t, x, y, z tuples) as a two-packet
// CZML document: a document packet and a satellite packet carrying a
// billboard, a label, a trajectory path, and interpolatable cartesian
// position samples, per spec.md §4.5.
func (p *Propagator) buildCZML(samples []simmsg.Field) string {
	id := p.CZMLID
	if id == "" {
		id = "propagator"
	}

	cartesian := make([]float64, 0, len(samples)*4)
	for _, s := range samples {
		tuple, ok := s.(map[string]simmsg.Field)
		if !ok {
			continue
		}
		t, _ := simmsg.Float64(tuple["sim_t"])
		x, _ := simmsg.Float64(tuple["x"])
		y, _ := simmsg.Float64(tuple["y"])
		z, _ := simmsg.Float64(tuple["z"])
		cartesian = append(cartesian, t, x, y, z)
	}

	packets := []czmlPacket{
		{ID: "document", Name: id, Version: "1.0"},
		{
			ID:        id,
			Name:      id,
			Billboard: &czmlBillboard{Image: "data:,", Scale: 1.5},
			Label:     &czmlLabel{Text: id, Show: true},
			Path:      &czmlPath{Show: true, Width: 1},
			Position:  &czmlPosition{Epoch: p.Epoch.Format(time.RFC3339), Cartesian: cartesian},
		},
	}

	data, err := json.MarshalIndent(packets, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
