// Package cluster implements the clusterer (C4): it assigns each
// delivery to a (pickup, vehicle) pair by ranking vehicles against a
// five-factor weighted penalty score (§4.3).
package cluster

import (
	"math"
	"sort"

	"fleetops/pkg/fleet"
	"fleetops/pkg/geo"
	"fleetops/pkg/optimizer/matrix"
	"fleetops/pkg/optimizer/types"
)

// AssignPickups maps every delivery to a pickup id: its pickupHint if
// set and present in the request, otherwise the nearest pickup by D.
func AssignPickups(deliveries []fleet.DeliveryPoint, pickups []fleet.Point, m *matrix.Matrix) map[string]string {
	assignment := make(map[string]string, len(deliveries))
	pickupSet := make(map[string]bool, len(pickups))
	for _, p := range pickups {
		pickupSet[p.ID] = true
	}

	for _, d := range deliveries {
		if d.PickupHint != "" && pickupSet[d.PickupHint] {
			assignment[d.ID] = d.PickupHint
			continue
		}
		assignment[d.ID] = nearestPickup(d, pickups, m)
	}
	return assignment
}

func nearestPickup(d fleet.DeliveryPoint, pickups []fleet.Point, m *matrix.Matrix) string {
	best := ""
	bestDist := math.Inf(1)
	for _, p := range pickups {
		dist := m.AtID(d.ID, p.ID)
		if dist < bestDist {
			bestDist = dist
			best = p.ID
		}
	}
	return best
}

// vehicleRunningState tracks, across the pickups processed so far in this
// clustering run, how loaded a vehicle is and which pickup (if any) it
// already serves — the running state F4/F5 are scored against. It is
// scoped to a single optimize call; nothing here persists across calls.
type vehicleRunningState struct {
	loadKg       float64
	servesPickup string // pickup id, "" if none yet
}

// Candidate is one vehicle's ranked score against a (pickup, group).
type Candidate struct {
	Vehicle   fleet.Vehicle
	Score     float64
	Breakdown map[types.Factor]types.FactorBreakdown
}

// clipPenalty clamps a raw penalty into [0, 100].
func clipPenalty(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// scoreVehicle computes the five F1-F5 penalties and the combined score
// for vehicle v serving pickup p's delivery group.
func scoreVehicle(p fleet.Point, group []fleet.DeliveryPoint, v fleet.Vehicle, state vehicleRunningState, m *matrix.Matrix, w types.ClusterWeights) Candidate {
	vehiclePoint := fleet.Point{ID: "__vehicle__" + v.ID, Lat: v.StartLat, Lng: v.StartLng}

	// F1: vehicle -> pickup distance.
	distVP := geo.DistanceKm(vehiclePoint, p)
	f1 := clipPenalty(distVP * 2)

	// F2: pickup -> delivery-cluster average distance.
	var sumDist float64
	for _, d := range group {
		sumDist += m.AtID(p.ID, d.ID)
	}
	avgDist := 0.0
	if len(group) > 0 {
		avgDist = sumDist / float64(len(group))
	}
	f2 := clipPenalty(avgDist * 2)

	// F3: delivery-cluster density (spread around centroid).
	f3 := 100.0
	if len(group) > 0 {
		pts := make([]fleet.Point, len(group))
		for i, d := range group {
			pts[i] = d.Point
		}
		centroid := geo.Centroid(pts)
		var sumFromCentroid float64
		for _, p2 := range pts {
			sumFromCentroid += geo.DistanceKm(p2, centroid)
		}
		avgFromCentroid := sumFromCentroid / float64(len(pts))
		f3 = clipPenalty(100 - avgFromCentroid*5)
	}

	// F4: projected load-balance utilization.
	var groupLoad float64
	for _, d := range group {
		groupLoad += d.WeightKg
	}
	u := 0.0
	if v.CapacityKg > 0 {
		u = (state.loadKg + groupLoad) / v.CapacityKg * 100
	} else {
		u = 100
	}
	var f4 float64
	switch {
	case u > 100:
		f4 = 100
	case u > 90:
		f4 = 10
	case u > 70:
		f4 = 30
	default:
		f4 = 70 - u
	}
	f4 = clipPenalty(f4)

	// F5: existing-route compatibility.
	var f5 float64
	switch {
	case state.servesPickup == "":
		f5 = 50
	case state.servesPickup == p.ID:
		f5 = 0
	default:
		f5 = 100
	}

	score := w.VehicleToPickupDistance*f1 +
		w.PickupToDeliveryDistance*f2 +
		w.DeliveryClusterDensity*f3 +
		w.VehicleLoadBalance*f4 +
		w.ExistingRouteCompatibility*f5

	return Candidate{
		Vehicle: v,
		Score:   score,
		Breakdown: map[types.Factor]types.FactorBreakdown{
			types.FactorVehicleToPickup:        {Value: distVP, Score: f1, Weight: w.VehicleToPickupDistance},
			types.FactorPickupToDeliveryGroup:  {Value: avgDist, Score: f2, Weight: w.PickupToDeliveryDistance},
			types.FactorDeliveryClusterDensity: {Value: f3, Score: f3, Weight: w.DeliveryClusterDensity},
			types.FactorVehicleLoadBalance:     {Value: u, Score: f4, Weight: w.VehicleLoadBalance},
			types.FactorExistingRouteCompat:    {Value: f5, Score: f5, Weight: w.ExistingRouteCompatibility},
		},
	}
}

// RankVehicles scores every candidate vehicle for a (pickup, group) and
// sorts ascending by score (lower wins), breaking ties by (lower
// vehicleId, earlier input index) to make the ranking deterministic.
func RankVehicles(p fleet.Point, group []fleet.DeliveryPoint, vehicles []fleet.Vehicle, states map[string]*vehicleRunningState, m *matrix.Matrix, w types.ClusterWeights) []Candidate {
	candidates := make([]Candidate, 0, len(vehicles))
	indexOf := make(map[string]int, len(vehicles))
	for i, v := range vehicles {
		indexOf[v.ID] = i
		st := states[v.ID]
		if st == nil {
			st = &vehicleRunningState{}
		}
		candidates = append(candidates, scoreVehicle(p, group, v, *st, m, w))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		if candidates[i].Vehicle.ID != candidates[j].Vehicle.ID {
			return candidates[i].Vehicle.ID < candidates[j].Vehicle.ID
		}
		return indexOf[candidates[i].Vehicle.ID] < indexOf[candidates[j].Vehicle.ID]
	})

	return candidates
}

// Result is the clusterer's full output: one cluster per pickup that
// found at least one candidate vehicle, plus the full per-pickup ranking
// (kept for diagnostics and for the distributor's "balanced" strategy,
// which needs the top-3 candidates, not just the winner).
type Result struct {
	Clusters []types.Cluster
	Rankings map[string][]Candidate // pickup id -> ranked candidates
}

// Run assigns every delivery to a pickup, then — in pickup input order —
// scores and ranks the available vehicles for that pickup's whole
// delivery group and assigns the group to the best-scoring vehicle
// (the §4.5 best_match policy; "balanced" redistributes post-hoc in the
// distributor using Rankings). Running vehicle load and serves-pickup
// state accumulate across pickups so later pickups see earlier
// assignments, matching F4/F5's "projected" and "existing route" framing.
func Run(pickups []fleet.Point, deliveries []fleet.DeliveryPoint, vehicles []fleet.Vehicle, m *matrix.Matrix, w types.ClusterWeights) Result {
	pickupAssignment := AssignPickups(deliveries, pickups, m)

	groupsByPickup := make(map[string][]fleet.DeliveryPoint)
	for _, d := range deliveries {
		pid := pickupAssignment[d.ID]
		groupsByPickup[pid] = append(groupsByPickup[pid], d)
	}

	available := make([]fleet.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Status == fleet.VehicleStatusAvailable {
			available = append(available, v)
		}
	}

	states := make(map[string]*vehicleRunningState, len(available))
	for _, v := range available {
		states[v.ID] = &vehicleRunningState{}
	}

	result := Result{Rankings: make(map[string][]Candidate, len(pickups))}

	for _, p := range pickups {
		group := groupsByPickup[p.ID]
		if len(group) == 0 {
			continue
		}
		if len(available) == 0 {
			continue
		}

		ranked := RankVehicles(p, group, available, states, m, w)
		result.Rankings[p.ID] = ranked

		winner := ranked[0]
		st := states[winner.Vehicle.ID]

		var groupLoad float64
		for _, d := range group {
			groupLoad += d.WeightKg
		}
		st.loadKg += groupLoad
		st.servesPickup = p.ID

		result.Clusters = append(result.Clusters, types.Cluster{
			Pickup:      p,
			Vehicle:     winner.Vehicle,
			Deliveries:  group,
			TotalLoadKg: groupLoad,
			Score:       winner.Score,
			Breakdown:   winner.Breakdown,
		})
	}

	return result
}
