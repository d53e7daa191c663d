// Package sequence implements the per-vehicle sequencer (C5): a
// nearest-neighbour construction with a priority tilt, improved by a
// bounded 2-opt local search (§4.4).
package sequence

import (
	"sort"

	"fleetops/pkg/fleet"
	"fleetops/pkg/optimizer/matrix"
)

// maxTwoOptIterations is the hard cap on 2-opt passes named in §4.4: a
// latency ceiling, not a correctness guarantee — callers must not rely
// on global optimality for large clusters.
const maxTwoOptIterations = 100

// priorityFactor returns the §4.4 perceived-distance multiplier for a
// delivery priority in [1..10]: higher priority shortens perceived
// distance so the construction visits it sooner.
func priorityFactor(priority int) float64 {
	switch {
	case priority >= 8:
		return 0.7 // HIGH
	case priority >= 5:
		return 1.0 // MEDIUM
	default:
		return 1.3 // LOW
	}
}

// Sequenced is the output of building and improving a route for one
// cluster: the ordered point ids (pickup first) and the final totals.
type Sequenced struct {
	PointIDs         []string
	TotalDistanceKm  float64
	TotalDurationMin float64
}

// Build runs nearest-neighbour construction with the priority tilt,
// then bounded 2-opt improvement, over pickup + deliveries. durations may
// be nil, in which case TotalDurationMin is left at 0.
func Build(pickup fleet.Point, deliveries []fleet.DeliveryPoint, m *matrix.Matrix, durations [][]float64) Sequenced {
	ids := construct(pickup, deliveries, m)
	ids = twoOpt(ids, m)

	seq := Sequenced{PointIDs: ids}
	seq.TotalDistanceKm = pathDistance(ids, m)
	if durations != nil {
		seq.TotalDurationMin = pathDuration(ids, m, durations)
	}
	return seq
}

// construct performs nearest-neighbour construction starting at the
// pickup: at each step it selects the unvisited delivery minimizing
// D(current, d) * priorityFactor(d), ties broken by lower input index.
func construct(pickup fleet.Point, deliveries []fleet.DeliveryPoint, m *matrix.Matrix) []string {
	ids := make([]string, 0, len(deliveries)+1)
	ids = append(ids, pickup.ID)

	visited := make([]bool, len(deliveries))
	current := pickup.ID

	for range deliveries {
		bestIdx := -1
		bestCost := 0.0
		for i, d := range deliveries {
			if visited[i] {
				continue
			}
			cost := m.AtID(current, d.ID) * priorityFactor(d.Priority)
			if bestIdx == -1 || cost < bestCost {
				bestIdx = i
				bestCost = cost
			}
		}
		visited[bestIdx] = true
		ids = append(ids, deliveries[bestIdx].ID)
		current = deliveries[bestIdx].ID
	}

	return ids
}

// twoOpt iterates the standard 2-opt local search: for every pair
// (i, k) with 1 <= i < k <= n-2, if reversing seq[i..k] reduces
// D(seq[i-1], seq[i]) + D(seq[k], seq[k+1]), the reversal is applied.
// Continues until a full pass finds no improvement or the iteration
// cap is reached.
func twoOpt(ids []string, m *matrix.Matrix) []string {
	n := len(ids)
	if n < 4 {
		return ids
	}

	seq := append([]string(nil), ids...)

	for iter := 0; iter < maxTwoOptIterations; iter++ {
		improved := false

		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n-1; k++ {
				before := m.AtID(seq[i-1], seq[i]) + m.AtID(seq[k], seq[k+1])
				after := m.AtID(seq[i-1], seq[k]) + m.AtID(seq[i], seq[k+1])
				if after < before {
					reverse(seq, i, k)
					improved = true
				}
			}
		}

		if !improved {
			break
		}
	}

	return seq
}

func reverse(seq []string, i, k int) {
	for i < k {
		seq[i], seq[k] = seq[k], seq[i]
		i++
		k--
	}
}

func pathDistance(ids []string, m *matrix.Matrix) float64 {
	var total float64
	for i := 0; i+1 < len(ids); i++ {
		total += m.AtID(ids[i], ids[i+1])
	}
	return total
}

func pathDuration(ids []string, m *matrix.Matrix, durations [][]float64) float64 {
	var total float64
	for i := 0; i+1 < len(ids); i++ {
		a, b := m.IndexOf(ids[i]), m.IndexOf(ids[i+1])
		if a < 0 || b < 0 {
			continue
		}
		total += durations[a][b]
	}
	return total
}

// SortByPriorityThenIndex is a stable helper used by tests/diagnostics
// to describe the priority ordering the construction phase targets; it
// is not on the hot path of Build itself.
func SortByPriorityThenIndex(deliveries []fleet.DeliveryPoint) []fleet.DeliveryPoint {
	out := append([]fleet.DeliveryPoint(nil), deliveries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
