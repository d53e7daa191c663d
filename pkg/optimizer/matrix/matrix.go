// Package matrix builds the symmetric cost matrix (C3) the clusterer and
// sequencer operate over: great-circle distance in kilometers and, in
// parallel, a coarse per-vehicle-kind duration table.
package matrix

import (
	"runtime"

	"fleetops/pkg/fleet"
	"fleetops/pkg/geo"
)

// yieldEvery is the cooperative-yield granularity named in spec.md §5:
// "optional cooperative yield every 10k cells" for large N. Build calls
// runtime.Gosched() at this cadence so a large matrix construction never
// monopolizes its goroutine's slice of an OS thread ahead of the
// supervisor's other engines.
const yieldEvery = 10000

// DefaultSpeedFactorKmh is the documented default of SPEC_FULL.md's
// expansion of §4.2 (Open Question 1): kilometers-per-hour used to turn
// distance into a coarse duration estimate, keyed by vehicle kind.
var DefaultSpeedFactorKmh = map[fleet.VehicleKind]float64{
	fleet.VehicleKindCar:        40,
	fleet.VehicleKindVan:        35,
	fleet.VehicleKindTruck:      28,
	fleet.VehicleKindMotorcycle: 45,
	fleet.VehicleKindMixed:      32,
}

// Matrix is the symmetric N x N cost matrix over an ordered point list.
type Matrix struct {
	Points []fleet.Point
	D      [][]float64 // kilometers
	index  map[string]int
}

// Build constructs the matrix for points (pickups first, then
// deliveries, in input order, per §4.2). Construction is O(N^2) in time
// and space; D[i][i] is always 0 and D[i][j] == D[j][i] by construction
// (both read from the same Haversine call).
func Build(points []fleet.Point) *Matrix {
	n := len(points)
	m := &Matrix{
		Points: points,
		D:      make([][]float64, n),
		index:  make(map[string]int, n),
	}
	for i := range m.D {
		m.D[i] = make([]float64, n)
	}
	for i, p := range points {
		m.index[p.ID] = i
	}

	cells := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geo.DistanceKm(points[i], points[j])
			m.D[i][j] = d
			m.D[j][i] = d
			cells++
			if cells%yieldEvery == 0 {
				runtime.Gosched()
			}
		}
	}

	return m
}

// IndexOf returns the matrix row/column for a point id, or -1 if absent.
func (m *Matrix) IndexOf(id string) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// At returns the distance in kilometers between the points at rows i, j.
func (m *Matrix) At(i, j int) float64 {
	return m.D[i][j]
}

// AtID returns the distance in kilometers between two points named by id.
// It returns 0 if either id is unknown to the matrix.
func (m *Matrix) AtID(a, b string) float64 {
	i, j := m.IndexOf(a), m.IndexOf(b)
	if i < 0 || j < 0 {
		return 0
	}
	return m.D[i][j]
}

// DurationTable computes T[i][j] = D[i][j] * 60 / speedFactor(kind),
// i.e. minutes, for a single vehicle kind's speed factor. A separate
// table is built per kind rather than one shared table, since the coarse
// duration estimate is a property of the vehicle traversing the leg, not
// of the leg alone.
func (m *Matrix) DurationTable(kind fleet.VehicleKind, speedFactorKmh map[fleet.VehicleKind]float64) [][]float64 {
	speed := DefaultSpeedFactorKmh[fleet.VehicleKindTruck]
	if s, ok := DefaultSpeedFactorKmh[kind]; ok {
		speed = s
	}
	if s, ok := speedFactorKmh[kind]; ok && s > 0 {
		speed = s
	}

	n := len(m.D)
	t := make([][]float64, n)
	for i := range t {
		t[i] = make([]float64, n)
		for j := range t[i] {
			t[i][j] = m.D[i][j] / speed * 60
		}
	}
	return t
}
