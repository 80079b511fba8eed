package position

import "time"

// Geopoint is a fixed geodetic location. Position() returns the stored
// scalars unchanged; Coords() transforms to an inertial frame at
// epoch+simTime, as spec.md §4.5 requires.
type Geopoint struct {
	Epoch  time.Time
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// NewGeopoint constructs a fixed-location MetaNode.
func NewGeopoint(epoch time.Time, latDeg, lonDeg, altKm float64) *Geopoint {
	return &Geopoint{Epoch: epoch, LatDeg: latDeg, LonDeg: lonDeg, AltKm: altKm}
}

// Position returns the stored geodetic location; velocity is zero for a
// fixed point relative to the Earth-fixed frame.
func (g *Geopoint) Position(_ float64) Sample {
	return Sample{LatDeg: g.LatDeg, LonDeg: g.LonDeg, AltKm: g.AltKm, Velocity: 0}
}

// Coords converts the geodetic location to an Earth-fixed frame at
// epoch+simTime and then to an inertial frame, per spec.md §4.5.
func (g *Geopoint) Coords(simTime float64) Vector3 {
	queryTime := g.Epoch.Add(durationFromSeconds(simTime))
	ecef := geodeticToECEF(g.LatDeg, g.LonDeg, g.AltKm)
	gst := greenwichSiderealAngle(queryTime)
	return ecefToECI(ecef, gst)
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
