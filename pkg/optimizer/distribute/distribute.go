// Package distribute implements the distributor (C6): it enforces the
// full-coverage and load-balance policies across the fleet, and applies
// the per-request distribution strategy (best_match or balanced) on top
// of the clusterer's (C4) per-pickup vehicle ranking.
package distribute

import (
	"math"
	"sort"

	"fleetops/pkg/fleet"
	"fleetops/pkg/geo"
	"fleetops/pkg/optimizer/cluster"
	"fleetops/pkg/optimizer/matrix"
	"fleetops/pkg/optimizer/types"
)

// Outcome is the distributor's result: the final per-vehicle clusters
// (post-strategy, post-capacity-trim, post-balance) and the deliveries
// that could not be placed.
type Outcome struct {
	Clusters      []types.Cluster
	Unserviceable []types.UnserviceableDelivery
}

// Run applies strategy to the clusterer's result, enforces capacity and
// the load-balance invariant, and returns the final placement.
func Run(result cluster.Result, businessRules fleet.BusinessRules, m *matrix.Matrix, strategy types.DistributionStrategy) Outcome {
	var clusters []types.Cluster
	var unserviceable []types.UnserviceableDelivery

	switch strategy {
	case types.DistributionBalanced:
		clusters, unserviceable = balanced(result, businessRules, m)
	default:
		clusters, unserviceable = bestMatch(result, businessRules)
	}

	// result.Rankings holds every available vehicle scored per pickup, not
	// just each pickup's winner (cluster.Run ranks the whole fleet). That
	// makes it the "next-best feasible vehicle" pool the balance pass
	// recruits idle trucks from (§4.5) before checking the invariant.
	clusters = recruitIdleVehicles(clusters, result.Rankings)

	clusters, moved := enforceLoadBalance(clusters)
	unserviceable = append(unserviceable, moved...)

	clusters = dropEmptyClusters(clusters)

	return Outcome{Clusters: clusters, Unserviceable: unserviceable}
}

// recruitIdleVehicles adds a zero-delivery cluster for every ranked
// vehicle not already serving some pickup, so the load-balance pass below
// has idle fleet capacity to move deliveries onto. Without this, a single
// best_match winner can never be split across the rest of an available
// fleet (§8 Balance).
func recruitIdleVehicles(clusters []types.Cluster, rankings map[string][]cluster.Candidate) []types.Cluster {
	used := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		used[c.Vehicle.ID] = true
	}

	pickupByID := make(map[string]fleet.Point)
	var pickupOrder []string
	for _, c := range clusters {
		if _, ok := pickupByID[c.Pickup.ID]; !ok {
			pickupByID[c.Pickup.ID] = c.Pickup
			pickupOrder = append(pickupOrder, c.Pickup.ID)
		}
	}

	for _, pid := range pickupOrder {
		for _, cand := range rankings[pid] {
			if used[cand.Vehicle.ID] {
				continue
			}
			used[cand.Vehicle.ID] = true
			clusters = append(clusters, types.Cluster{
				Pickup:    pickupByID[pid],
				Vehicle:   cand.Vehicle,
				Score:     cand.Score,
				Breakdown: cand.Breakdown,
			})
		}
	}

	return clusters
}

// dropEmptyClusters removes clusters left with no deliveries after
// load-balancing (idle vehicles recruited but never given work).
func dropEmptyClusters(clusters []types.Cluster) []types.Cluster {
	out := clusters[:0]
	for _, c := range clusters {
		if len(c.Deliveries) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// bestMatch keeps the clusterer's per-pickup winner assignment as-is,
// trimming any cluster whose load exceeds its vehicle's capacity and
// checking each delivery against restricted zones.
func bestMatch(result cluster.Result, rules fleet.BusinessRules) ([]types.Cluster, []types.UnserviceableDelivery) {
	var clusters []types.Cluster
	var unserviceable []types.UnserviceableDelivery

	for _, c := range result.Clusters {
		kept, dropped := trimToCapacity(c, rules)
		if len(kept.Deliveries) > 0 {
			clusters = append(clusters, kept)
		}
		unserviceable = append(unserviceable, dropped...)
	}

	return clusters, unserviceable
}

// balanced round-robins each pickup's deliveries across the top-3 ranked
// vehicles for that pickup, preserving capacity per §4.5.
func balanced(result cluster.Result, rules fleet.BusinessRules, m *matrix.Matrix) ([]types.Cluster, []types.UnserviceableDelivery) {
	var clusters []types.Cluster
	var unserviceable []types.UnserviceableDelivery

	for _, c := range result.Clusters {
		ranked := result.Rankings[c.Pickup.ID]
		top := ranked
		if len(top) > 3 {
			top = top[:3]
		}
		if len(top) == 0 {
			unserviceable = append(unserviceable, reasonAll(c.Deliveries, types.ReasonNoFeasibleVehicle)...)
			continue
		}

		buckets := make([][]fleet.DeliveryPoint, len(top))
		loads := make([]float64, len(top))
		for i, d := range c.Deliveries {
			slot := i % len(top)
			buckets[slot] = append(buckets[slot], d)
			loads[slot] += d.WeightKg
		}

		for i, v := range top {
			if len(buckets[i]) == 0 {
				continue
			}
			candidate := types.Cluster{
				Pickup:      c.Pickup,
				Vehicle:     v.Vehicle,
				Deliveries:  buckets[i],
				TotalLoadKg: loads[i],
				Score:       v.Score,
				Breakdown:   v.Breakdown,
			}
			kept, dropped := trimToCapacity(candidate, rules)
			if len(kept.Deliveries) > 0 {
				clusters = append(clusters, kept)
			}
			unserviceable = append(unserviceable, dropped...)
		}
	}

	return clusters, unserviceable
}

// trimToCapacity keeps deliveries (in their existing order) up to the
// vehicle's capacity and reports the rest capacity_exceeded, then checks
// each kept delivery's time window and the restricted zones.
func trimToCapacity(c types.Cluster, rules fleet.BusinessRules) (types.Cluster, []types.UnserviceableDelivery) {
	var kept []fleet.DeliveryPoint
	var dropped []types.UnserviceableDelivery
	var load float64

	for _, d := range c.Deliveries {
		if load+d.WeightKg > c.Vehicle.CapacityKg {
			dropped = append(dropped, types.UnserviceableDelivery{Delivery: d, Reason: types.ReasonCapacityExceeded})
			continue
		}
		if reason, bad := checkConstraints(d, rules); bad {
			dropped = append(dropped, types.UnserviceableDelivery{Delivery: d, Reason: reason})
			continue
		}
		kept = append(kept, d)
		load += d.WeightKg
	}

	c.Deliveries = kept
	c.TotalLoadKg = load
	return c, dropped
}

// checkConstraints evaluates the restricted-zone and time-window
// feasibility of placing a single delivery, independent of capacity.
func checkConstraints(d fleet.DeliveryPoint, rules fleet.BusinessRules) (types.UnserviceableReason, bool) {
	for _, rz := range rules.RestrictedZones {
		if rz.TimeWindow.Closed {
			continue
		}
		if pointInRestrictedZone(d, rz) {
			return types.ReasonRestrictedZone, true
		}
	}

	if d.TimeWindow != nil && d.TimeWindow.Closed {
		return types.ReasonTimeWindowConflict, true
	}

	return "", false
}

func reasonAll(deliveries []fleet.DeliveryPoint, reason types.UnserviceableReason) []types.UnserviceableDelivery {
	out := make([]types.UnserviceableDelivery, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, types.UnserviceableDelivery{Delivery: d, Reason: reason})
	}
	return out
}

// enforceLoadBalance checks the §4.5/§8 invariant
// |deliveries_i - deliveries_j| <= 1 + ceil(0.3*mean) for any two active
// vehicles, moving the lowest-priority delivery from the heaviest cluster
// to the next-best feasible cluster until it holds or no move improves
// it. A vehicle's route starts at exactly one pickup, so the invariant is
// enforced within each pickup's group of clusters independently.
func enforceLoadBalance(clusters []types.Cluster) ([]types.Cluster, []types.UnserviceableDelivery) {
	groups, order := groupByPickup(clusters)

	out := make([]types.Cluster, 0, len(clusters))
	for _, pid := range order {
		out = append(out, balanceGroup(groups[pid])...)
	}

	return out, nil
}

// groupByPickup partitions clusters by their pickup id, preserving the
// order pickups first appear in.
func groupByPickup(clusters []types.Cluster) (map[string][]types.Cluster, []string) {
	groups := make(map[string][]types.Cluster)
	var order []string
	for _, c := range clusters {
		if _, ok := groups[c.Pickup.ID]; !ok {
			order = append(order, c.Pickup.ID)
		}
		groups[c.Pickup.ID] = append(groups[c.Pickup.ID], c)
	}
	return groups, order
}

// balanceGroup applies the load-balance invariant to one pickup's set of
// clusters (including any idle vehicles recruited by recruitIdleVehicles).
func balanceGroup(clusters []types.Cluster) []types.Cluster {
	if len(clusters) < 2 {
		return clusters
	}

	for pass := 0; pass < len(clusters)*8; pass++ {
		mean := meanDeliveries(clusters)
		tolerance := 1 + int(math.Ceil(0.3*mean))

		hi, lo := extremeIndices(clusters)
		if hi < 0 || lo < 0 || hi == lo {
			break
		}
		if len(clusters[hi].Deliveries)-len(clusters[lo].Deliveries) <= tolerance {
			break
		}

		moveIdx := lowestScoreDeliveryIndex(clusters[hi])
		if moveIdx < 0 {
			break
		}
		d := clusters[hi].Deliveries[moveIdx]

		if clusters[lo].TotalLoadKg+d.WeightKg > clusters[lo].Vehicle.CapacityKg {
			break // no feasible move improves the invariant
		}

		clusters[hi].Deliveries = append(clusters[hi].Deliveries[:moveIdx], clusters[hi].Deliveries[moveIdx+1:]...)
		clusters[hi].TotalLoadKg -= d.WeightKg

		clusters[lo].Deliveries = append(clusters[lo].Deliveries, d)
		clusters[lo].TotalLoadKg += d.WeightKg
	}

	return clusters
}

func meanDeliveries(clusters []types.Cluster) float64 {
	total := 0
	for _, c := range clusters {
		total += len(c.Deliveries)
	}
	return float64(total) / float64(len(clusters))
}

func extremeIndices(clusters []types.Cluster) (hi, lo int) {
	hi, lo = -1, -1
	for i, c := range clusters {
		if hi == -1 || len(c.Deliveries) > len(clusters[hi].Deliveries) {
			hi = i
		}
		if lo == -1 || len(c.Deliveries) < len(clusters[lo].Deliveries) {
			lo = i
		}
	}
	return hi, lo
}

func lowestScoreDeliveryIndex(c types.Cluster) int {
	if len(c.Deliveries) == 0 {
		return -1
	}
	best := 0
	for i, d := range c.Deliveries {
		if d.Priority < c.Deliveries[best].Priority {
			best = i
		}
	}
	return best
}

// pointInRestrictedZone reports whether d falls inside a restricted
// zone during the zone's active time window. A single delivery carries
// no absolute service time in this request shape, so a restricted zone
// is treated as active for coverage purposes whenever its own window is
// not "closed" — callers needing per-day precision should pre-filter
// BusinessRules.RestrictedZones to the relevant service day before
// calling Run.
func pointInRestrictedZone(d fleet.DeliveryPoint, rz fleet.RestrictedZone) bool {
	return geo.ZoneContains(rz.Zone, d.Point)
}

// SortClustersByVehicleID returns clusters sorted by vehicle id, used to
// give the coordinator's Route list a deterministic order.
func SortClustersByVehicleID(clusters []types.Cluster) []types.Cluster {
	out := append([]types.Cluster(nil), clusters...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Vehicle.ID < out[j].Vehicle.ID })
	return out
}
