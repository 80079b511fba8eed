package position

import (
	"math"
	"testing"
	"time"
)

func TestGeopointPositionIsStable(t *testing.T) {
	g := NewGeopoint(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10, 20, 0.5)
	s := g.Position(3600)
	if s.LatDeg != 10 || s.LonDeg != 20 || s.AltKm != 0.5 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if s.Velocity != 0 {
		t.Fatalf("expected zero velocity for a fixed point, got %v", s.Velocity)
	}
}

func TestGeopointCoordsMagnitudeNearEarthRadius(t *testing.T) {
	g := NewGeopoint(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, 0, 0)
	for _, simTime := range []float64{0, 30, 60, 3600} {
		c := g.Coords(simTime)
		mag := math.Sqrt(c.X*c.X + c.Y*c.Y + c.Z*c.Z)
		if math.Abs(mag-earthRadiusKm) > 1.0 {
			t.Errorf("simTime=%g: |coords|=%g, want ~%g", simTime, mag, earthRadiusKm)
		}
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	lat, lon, alt := 37.5, -122.25, 10.0
	ecef := geodeticToECEF(lat, lon, alt)
	gotLat, gotLon, gotAlt := ecefToGeodetic(ecef)

	if math.Abs(gotLat-lat) > 1e-6 {
		t.Errorf("lat round-trip: got %g want %g", gotLat, lat)
	}
	if math.Abs(gotLon-lon) > 1e-6 {
		t.Errorf("lon round-trip: got %g want %g", gotLon, lon)
	}
	if math.Abs(gotAlt-alt) > 1e-3 {
		t.Errorf("alt round-trip: got %g want %g", gotAlt, alt)
	}
}
