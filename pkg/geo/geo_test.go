package geo

import (
	"math"
	"testing"

	"fleetops/pkg/fleet"
)

func TestHaversineKm_SamePoint(t *testing.T) {
	if d := HaversineKm(40.7128, -74.0060, 40.7128, -74.0060); d != 0 {
		t.Errorf("HaversineKm(same point) = %v, want 0", d)
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// New York (40.7128, -74.0060) to Los Angeles (34.0522, -118.2437)
	// is approximately 3936 km great-circle.
	d := HaversineKm(40.7128, -74.0060, 34.0522, -118.2437)
	want := 3936.0
	if math.Abs(d-want) > 50 {
		t.Errorf("HaversineKm(NY, LA) = %v, want ~%v", d, want)
	}
}

func TestDistanceKm(t *testing.T) {
	a := fleet.Point{Lat: 51.5074, Lng: -0.1278}
	b := fleet.Point{Lat: 48.8566, Lng: 2.3522}
	d := DistanceKm(a, b)
	if d <= 0 {
		t.Errorf("DistanceKm(London, Paris) = %v, want > 0", d)
	}
}

func TestCentroid(t *testing.T) {
	points := []fleet.Point{
		{Lat: 0, Lng: 0},
		{Lat: 10, Lng: 10},
		{Lat: -10, Lng: -10},
	}
	c := Centroid(points)
	if c.Lat != 0 || c.Lng != 0 {
		t.Errorf("Centroid() = %+v, want {0 0}", c)
	}
}

func TestCentroid_SinglePoint(t *testing.T) {
	c := Centroid([]fleet.Point{{Lat: 5, Lng: 7}})
	if c.Lat != 5 || c.Lng != 7 {
		t.Errorf("Centroid() = %+v, want {5 7}", c)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []fleet.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 10},
		{Lat: 10, Lng: 10},
		{Lat: 10, Lng: 0},
	}

	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{"inside", 5, 5, true},
		{"outside", 20, 20, false},
		{"far outside", -5, -5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygon(tt.lat, tt.lng, square); got != tt.want {
				t.Errorf("PointInPolygon(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestPointInPolygon_TooFewVertices(t *testing.T) {
	if PointInPolygon(0, 0, []fleet.Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}) {
		t.Error("PointInPolygon with < 3 vertices should be false")
	}
}

func TestZoneContains(t *testing.T) {
	zone := fleet.Zone{
		Name: "downtown",
		Vertices: []fleet.Point{
			{Lat: 0, Lng: 0},
			{Lat: 0, Lng: 10},
			{Lat: 10, Lng: 10},
			{Lat: 10, Lng: 0},
		},
	}

	if !ZoneContains(zone, fleet.Point{Lat: 5, Lng: 5}) {
		t.Error("ZoneContains should be true for interior point")
	}
	if ZoneContains(zone, fleet.Point{Lat: 50, Lng: 50}) {
		t.Error("ZoneContains should be false for exterior point")
	}
}

func TestParseTimeWindow(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantS   int
		wantE   int
		closed  bool
	}{
		{"valid window", "09:00-17:30", false, 9 * 60, 17*60 + 30, false},
		{"closed literal", "closed", false, 0, 0, true},
		{"closed case-insensitive", "Closed", false, 0, 0, true},
		{"midnight to midnight", "00:00-23:59", false, 0, 23*60 + 59, false},
		{"missing dash", "09:00 17:30", true, 0, 0, false},
		{"hour out of range", "24:00-17:30", true, 0, 0, false},
		{"minute out of range", "09:60-17:30", true, 0, 0, false},
		{"start after end", "17:30-09:00", true, 0, 0, false},
		{"malformed clock", "9-17:30", true, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw, err := ParseTimeWindow(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeWindow(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tw.Closed != tt.closed || tw.StartMin != tt.wantS || tw.EndMin != tt.wantE {
				t.Errorf("ParseTimeWindow(%q) = %+v, want {start:%d end:%d closed:%v}", tt.input, tw, tt.wantS, tt.wantE, tt.closed)
			}
		})
	}
}

func TestFormatTimeWindow(t *testing.T) {
	tw := fleet.TimeWindow{StartMin: 9 * 60, EndMin: 17*60 + 30}
	if got := FormatTimeWindow(tw); got != "09:00-17:30" {
		t.Errorf("FormatTimeWindow() = %q, want %q", got, "09:00-17:30")
	}

	closed := fleet.TimeWindow{Closed: true}
	if got := FormatTimeWindow(closed); got != "closed" {
		t.Errorf("FormatTimeWindow(closed) = %q, want %q", got, "closed")
	}
}

func TestTimeWindow_RoundTrip(t *testing.T) {
	tw, err := ParseTimeWindow("08:15-12:45")
	if err != nil {
		t.Fatalf("ParseTimeWindow() error = %v", err)
	}
	if got := FormatTimeWindow(tw); got != "08:15-12:45" {
		t.Errorf("round trip = %q, want %q", got, "08:15-12:45")
	}
}
