package types

import "fleetops/pkg/fleet"

// DistributionStrategy selects how C6 spreads a pickup's deliveries
// across candidate vehicles (§4.5).
type DistributionStrategy string

const (
	DistributionBestMatch DistributionStrategy = "best_match"
	DistributionBalanced  DistributionStrategy = "balanced"
)

// WeightsPreset names a pre-canned clusterer weight vector (§4.3).
type WeightsPreset string

const (
	PresetProximityFocused  WeightsPreset = "proximity_focused"
	PresetLoadBalanced      WeightsPreset = "load_balanced"
	PresetClusterOptimized  WeightsPreset = "cluster_optimized"
	PresetRouteContinuation WeightsPreset = "route_continuation"
	PresetDefault           WeightsPreset = "default"
)

// ClusterWeights are the five F1-F5 factor weights of §4.3. They need not
// sum to 1 on input — the validator normalizes and records a warning.
type ClusterWeights struct {
	VehicleToPickupDistance   float64 `json:"vehicleToPickupDistance"`
	PickupToDeliveryDistance  float64 `json:"pickupToDeliveryDistance"`
	DeliveryClusterDensity    float64 `json:"deliveryClusterDensity"`
	VehicleLoadBalance        float64 `json:"vehicleLoadBalance"`
	ExistingRouteCompatibility float64 `json:"existingRouteCompatibility"`
}

// Sum returns the sum of all five weights.
func (w ClusterWeights) Sum() float64 {
	return w.VehicleToPickupDistance + w.PickupToDeliveryDistance +
		w.DeliveryClusterDensity + w.VehicleLoadBalance + w.ExistingRouteCompatibility
}

// Normalized returns w scaled so its components sum to 1. Called with a
// zero-sum vector it returns DefaultWeights() instead of dividing by zero.
func (w ClusterWeights) Normalized() ClusterWeights {
	s := w.Sum()
	if s <= 0 {
		return DefaultWeights()
	}
	return ClusterWeights{
		VehicleToPickupDistance:    w.VehicleToPickupDistance / s,
		PickupToDeliveryDistance:   w.PickupToDeliveryDistance / s,
		DeliveryClusterDensity:     w.DeliveryClusterDensity / s,
		VehicleLoadBalance:         w.VehicleLoadBalance / s,
		ExistingRouteCompatibility: w.ExistingRouteCompatibility / s,
	}
}

// DefaultWeights is the "default" preset of §4.3's factor table.
func DefaultWeights() ClusterWeights {
	return ClusterWeights{
		VehicleToPickupDistance:    0.25,
		PickupToDeliveryDistance:   0.30,
		DeliveryClusterDensity:     0.20,
		VehicleLoadBalance:         0.15,
		ExistingRouteCompatibility: 0.10,
	}
}

// WeightsForPreset returns the named preset's weight vector, falling back
// to DefaultWeights for an unrecognized name.
func WeightsForPreset(name WeightsPreset) ClusterWeights {
	switch name {
	case PresetProximityFocused:
		return ClusterWeights{0.45, 0.35, 0.10, 0.05, 0.05}
	case PresetLoadBalanced:
		return ClusterWeights{0.15, 0.15, 0.15, 0.45, 0.10}
	case PresetClusterOptimized:
		return ClusterWeights{0.15, 0.25, 0.45, 0.10, 0.05}
	case PresetRouteContinuation:
		return ClusterWeights{0.15, 0.20, 0.10, 0.10, 0.45}
	default:
		return DefaultWeights()
	}
}

// WeatherContext and TrafficContext are the enumerated request context
// vocabularies of §6; unrecognized values are defaulted by the validator.
type WeatherContext string

const (
	WeatherSunny  WeatherContext = "sunny"
	WeatherRainy  WeatherContext = "rainy"
	WeatherCloudy WeatherContext = "cloudy"
	WeatherSnowy  WeatherContext = "snowy"
	WeatherNormal WeatherContext = "normal"
)

type TrafficContext string

const (
	TrafficLight  TrafficContext = "light"
	TrafficMedium TrafficContext = "medium"
	TrafficHeavy  TrafficContext = "heavy"
	TrafficNormal TrafficContext = "normal"
)

// RequestContext carries the ambient weather/traffic conditions a caller
// attaches to a request (§6); purely advisory, consumed nowhere in the
// deterministic pipeline beyond validation/defaulting.
type RequestContext struct {
	Weather WeatherContext `json:"weather"`
	Traffic TrafficContext `json:"traffic"`
}

// Preferences is the caller-supplied tuning block of §6.
type Preferences struct {
	Weights      *ClusterWeights       `json:"weights,omitempty"`
	Preset       WeightsPreset         `json:"preset,omitempty"`
	Distribution DistributionStrategy  `json:"distribution,omitempty"`
}

// OptimizationRequest is the canonical input to the coordinator (§6).
type OptimizationRequest struct {
	PickupPoints   []fleet.Point          `json:"pickupPoints"`
	DeliveryPoints []fleet.DeliveryPoint  `json:"deliveryPoints"`
	Fleet          []fleet.Vehicle        `json:"fleet"`
	BusinessRules  fleet.BusinessRules    `json:"businessRules"`
	Preferences    Preferences            `json:"preferences"`
	Context        RequestContext         `json:"context"`
}
