package position

import (
	"fmt"
	"math"
	"time"

	"github.com/akhenakh/sgp4"
)

// Orbital is a TLE-backed MetaNode. Position() propagates the TLE to
// epoch+simTime with SGP4 and converts the result to geodetic
// lat/lon/alt plus inertial velocity magnitude.
type Orbital struct {
	Epoch time.Time
	Line1 string
	Line2 string

	sat *sgp4.Satellite
}

// NewOrbital parses a two-line element set and binds it to epoch — the
// absolute UTC instant simTime=0 corresponds to.
func NewOrbital(epoch time.Time, line1, line2 string) (*Orbital, error) {
	sat, err := sgp4.NewSatellite(line1, line2)
	if err != nil {
		return nil, fmt.Errorf("position: parse TLE: %w", err)
	}
	return &Orbital{Epoch: epoch, Line1: line1, Line2: line2, sat: sat}, nil
}

// Position propagates to epoch+simTime and returns the geodetic
// reading plus inertial velocity magnitude, per spec.md §4.5.
func (o *Orbital) Position(simTime float64) Sample {
	queryTime := o.Epoch.Add(durationFromSeconds(simTime))

	posECI, velECI, err := o.sat.Propagate(queryTime)
	if err != nil {
		// A propagation failure (e.g. decayed orbit) degrades to a
		// zero reading rather than panicking the node's step; the
		// node behavior deciding what to do with a zeroed sample is
		// its own concern.
		return Sample{}
	}

	gst := greenwichSiderealAngle(queryTime)
	ecef := eciToECEF(Vector3{X: posECI.X, Y: posECI.Y, Z: posECI.Z}, gst)
	lat, lon, alt := ecefToGeodetic(ecef)

	speed := magnitude(Vector3{X: velECI.X, Y: velECI.Y, Z: velECI.Z})

	return Sample{LatDeg: lat, LonDeg: lon, AltKm: alt, Velocity: speed}
}

// Coords returns the raw propagated inertial (ECI) position, used by
// propagator nodes building ephemeris arrays.
func (o *Orbital) Coords(simTime float64) Vector3 {
	queryTime := o.Epoch.Add(durationFromSeconds(simTime))
	posECI, _, err := o.sat.Propagate(queryTime)
	if err != nil {
		return Vector3{}
	}
	return Vector3{X: posECI.X, Y: posECI.Y, Z: posECI.Z}
}

func magnitude(v Vector3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}
