// Package types holds the ephemeral result types produced by the route
// optimization pipeline (C4-C7 of the optimizer): Cluster, Route, and the
// OptimizationResult envelope. They are owned exclusively by the
// coordinator for the lifetime of a single optimize call — unlike the
// pkg/fleet entities, nothing here is process-long or shared.
package types

import (
	"time"

	"fleetops/pkg/fleet"
)

// Factor names one of the five weighted penalty terms the clusterer
// scores a (pickup, vehicle) candidate on (§4.3).
type Factor string

const (
	FactorVehicleToPickup        Factor = "vehicle_to_pickup_distance"
	FactorPickupToDeliveryGroup  Factor = "pickup_to_delivery_distance"
	FactorDeliveryClusterDensity Factor = "delivery_cluster_density"
	FactorVehicleLoadBalance     Factor = "vehicle_load_balance"
	FactorExistingRouteCompat    Factor = "existing_route_compatibility"
)

// FactorBreakdown is one scored term in a Cluster's score, kept for
// diagnostics and for the clusteringMetadata surfaced on the Route.
type FactorBreakdown struct {
	Value  float64 `json:"value"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Cluster is the ephemeral (pickup, vehicle, deliveries) triple the
// clusterer (C4) emits and the sequencer (C5) consumes.
type Cluster struct {
	Pickup      fleet.Point
	Vehicle     fleet.Vehicle
	Deliveries  []fleet.DeliveryPoint
	TotalLoadKg float64
	Score       float64
	Breakdown   map[Factor]FactorBreakdown
}

// WaypointKind distinguishes the two stops a route visits.
type WaypointKind string

const (
	WaypointPickup   WaypointKind = "pickup"
	WaypointDelivery WaypointKind = "delivery"
)

// Waypoint is a single stop in a sequenced route.
type Waypoint struct {
	PointRef   string             `json:"pointRef"`
	Kind       WaypointKind       `json:"kind"`
	ETA        *time.Time         `json:"eta,omitempty"`
	TimeWindow *fleet.TimeWindow  `json:"timeWindow,omitempty"`
}

// ClusteringMetadata summarizes the cluster a route was sequenced from.
type ClusteringMetadata struct {
	AvgScore       float64 `json:"avgScore"`
	ClusterDensity float64 `json:"clusterDensity"`
}

// Route is the ordered, sequenced output of C5 for one vehicle.
type Route struct {
	ID                  string              `json:"id"`
	Vehicle             fleet.Vehicle       `json:"vehicle"`
	Waypoints           []Waypoint          `json:"waypoints"`
	TotalDistanceKm     float64             `json:"totalDistanceKm"`
	TotalDurationMin    float64             `json:"totalDurationMin"`
	LoadKg              float64             `json:"loadKg"`
	ClusteringMetadata  ClusteringMetadata  `json:"clusteringMetadata"`
}

// DeliveryCount reports how many delivery waypoints the route carries
// (every waypoint but the leading pickup).
func (r Route) DeliveryCount() int {
	n := 0
	for _, w := range r.Waypoints {
		if w.Kind == WaypointDelivery {
			n++
		}
	}
	return n
}

// UnserviceableReason is the closed vocabulary of reasons a delivery
// could not be placed on any route (§4.5).
type UnserviceableReason string

const (
	ReasonNoFeasibleVehicle  UnserviceableReason = "no_feasible_vehicle"
	ReasonCapacityExceeded   UnserviceableReason = "capacity_exceeded"
	ReasonTimeWindowConflict UnserviceableReason = "time_window_conflict"
	ReasonRestrictedZone     UnserviceableReason = "restricted_zone"
)

// UnserviceableDelivery pairs a delivery with why it could not be routed.
type UnserviceableDelivery struct {
	Delivery fleet.DeliveryPoint `json:"delivery"`
	Reason   UnserviceableReason `json:"reason"`
}

// Summary is the aggregate block of an OptimizationResult.
type Summary struct {
	RouteCount            int     `json:"routeCount"`
	DeliveryCount          int     `json:"deliveryCount"`
	TotalDistanceKm        float64 `json:"totalDistanceKm"`
	TotalDurationMin       float64 `json:"totalDurationMin"`
	VehiclesUsed           int     `json:"vehiclesUsed"`
	AvgDeliveriesPerVehicle float64 `json:"avgDeliveriesPerVehicle"`
	AvgLoadPerVehicle       float64 `json:"avgLoadPerVehicle"`
}

// OptimizationResult is the public output of the coordinator (C7).
type OptimizationResult struct {
	RequestID     string                  `json:"requestId"`
	Routes        []Route                 `json:"routes"`
	Summary       Summary                 `json:"summary"`
	Unserviceable []UnserviceableDelivery `json:"unserviceable"`
	Timings       map[string]float64      `json:"timings"` // phase -> ms
}
