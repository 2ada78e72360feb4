package geo

import (
	"math"
	"testing"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantX    float64
		wantY    float64
	}{
		{"origin", 0, 0, 0, 0},
		{"antimeridian", 0, 180, math.Pi * EarthRadius, 0},
		{"west", 0, -90, -math.Pi / 2 * EarthRadius, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project(tt.lat, tt.lon)
			if math.Abs(p.X-tt.wantX) > 1e-6 {
				t.Errorf("X = %f, want %f", p.X, tt.wantX)
			}
			if math.Abs(p.Y-tt.wantY) > 1e-6 {
				t.Errorf("Y = %f, want %f", p.Y, tt.wantY)
			}
		})
	}
}

func TestProjectClampsLatitude(t *testing.T) {
	pole := Project(90, 0)
	limit := Project(MaxLatitude, 0)
	if math.IsInf(pole.Y, 0) || math.IsNaN(pole.Y) {
		t.Fatalf("projection diverged at the pole: %v", pole.Y)
	}
	if math.Abs(pole.Y-limit.Y) > 1e-6 {
		t.Errorf("Project(90) Y = %f, want clamped %f", pole.Y, limit.Y)
	}

	// the two hemispheres take different log/tan paths and may differ in the last bit
	south := Project(-90, 0)
	if math.Abs(south.Y+limit.Y) > 1e-6 {
		t.Errorf("Project(-90) Y = %f, want %f", south.Y, -limit.Y)
	}
}

func TestUnprojectRoundTrip(t *testing.T) {
	locs := []Location{
		{Latitude: 48.8566, Longitude: 2.3522},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 64.1466, Longitude: -21.9426},
	}
	for _, loc := range locs {
		got := Unproject(ProjectLocation(loc))
		if math.Abs(got.Latitude-loc.Latitude) > 1e-9 || math.Abs(got.Longitude-loc.Longitude) > 1e-9 {
			t.Errorf("round trip of %+v gave %+v", loc, got)
		}
	}
}

func TestWithinBox(t *testing.T) {
	center := Point{X: 100, Y: 100}
	tests := []struct {
		name string
		p    Point
		r    float64
		want bool
	}{
		{"inside", Point{X: 105, Y: 95}, 10, true},
		{"outside x", Point{X: 111, Y: 100}, 10, false},
		{"outside y", Point{X: 100, Y: 89}, 10, false},
		{"on edge is outside", Point{X: 110, Y: 100}, 10, false},
		{"corner inside box but outside circle", Point{X: 109, Y: 109}, 10, true},
		{"zero radius", Point{X: 100, Y: 100}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.WithinBox(center, tt.r); got != tt.want {
				t.Errorf("WithinBox() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNear(t *testing.T) {
	a := Location{Latitude: 10, Longitude: 20}
	if !Near(a, Location{Latitude: 10.0005, Longitude: 19.9995}, 0.001) {
		t.Error("expected points within tolerance to be near")
	}
	if Near(a, Location{Latitude: 10.002, Longitude: 20}, 0.001) {
		t.Error("expected points outside tolerance not to be near")
	}
}
