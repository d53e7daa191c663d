// Package validate implements the request validator (C2): it rejects
// structurally invalid optimization requests and normalizes the rest,
// silently replacing unrecognized enumerations with documented defaults.
// Sanitization here is not security-sensitive — the trust boundary sits
// above this component (§4.1) — its only job is guaranteeing the §3
// invariants before the request reaches the rest of the pipeline.
package validate

import (
	"fmt"
	"math"
	"strings"

	"fleetops/pkg/apperror"
	"fleetops/pkg/fleet"
	"fleetops/pkg/optimizer/types"
)

const (
	maxPoints = 500

	defaultPointKind    = fleet.PointKindDelivery
	defaultVehicleKind  = fleet.VehicleKindTruck
	defaultVehicleState = fleet.VehicleStatusAvailable
	defaultWeather      = types.WeatherNormal
	defaultTraffic      = types.TrafficNormal
)

var (
	validVehicleKinds = map[fleet.VehicleKind]bool{
		fleet.VehicleKindCar: true, fleet.VehicleKindVan: true,
		fleet.VehicleKindTruck: true, fleet.VehicleKindMotorcycle: true,
		fleet.VehicleKindMixed: true,
	}
	validVehicleStatuses = map[fleet.VehicleStatus]bool{
		fleet.VehicleStatusAvailable: true, fleet.VehicleStatusUnavailable: true,
		fleet.VehicleStatusDelivering: true, fleet.VehicleStatusReturning: true,
	}
	validWeather = map[types.WeatherContext]bool{
		types.WeatherSunny: true, types.WeatherRainy: true, types.WeatherCloudy: true,
		types.WeatherSnowy: true, types.WeatherNormal: true,
	}
	validTraffic = map[types.TrafficContext]bool{
		types.TrafficLight: true, types.TrafficMedium: true,
		types.TrafficHeavy: true, types.TrafficNormal: true,
	}
	validDistribution = map[types.DistributionStrategy]bool{
		types.DistributionBestMatch: true, types.DistributionBalanced: true,
	}
)

// Normalized wraps the request after validation/defaulting. The
// coordinator operates only on this type, never on the raw request.
type Normalized struct {
	Request types.OptimizationRequest
}

// Validate checks req against the §3 invariants and §4.1 enumerated
// vocabularies. Structural problems are returned as a *apperror.
// ValidationErrors (Code: validation); on success it returns the request
// with string fields trimmed and unknown enumerations replaced.
func Validate(req types.OptimizationRequest) (*Normalized, error) {
	verrs := apperror.NewValidationErrors()

	total := len(req.PickupPoints) + len(req.DeliveryPoints)
	if total == 0 {
		verrs.AddErrorWithField(apperror.CodeValidation, "request carries no pickup or delivery points", "points")
	}
	if total > maxPoints {
		verrs.AddErrorWithField(apperror.CodeValidation,
			fmt.Sprintf("request carries %d points, exceeding the limit of %d", total, maxPoints), "points")
	}
	if len(req.Fleet) == 0 {
		verrs.AddErrorWithField(apperror.CodeValidation, "fleet must not be empty", "fleet")
	}

	seenIDs := make(map[string]bool, total)
	pickupIDs := make(map[string]bool, len(req.PickupPoints))

	for i := range req.PickupPoints {
		p := &req.PickupPoints[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Address = strings.TrimSpace(p.Address)
		p.ID = strings.TrimSpace(p.ID)
		p.Kind = fleet.PointKindPickup

		field := fmt.Sprintf("pickupPoints[%d]", i)
		validatePointCoords(verrs, *p, field)
		if p.ID == "" {
			verrs.AddErrorWithField(apperror.CodeValidation, "pickup point id must not be empty", field+".id")
		} else if seenIDs[p.ID] {
			verrs.AddErrorWithField(apperror.CodeValidation, fmt.Sprintf("duplicate point id %q", p.ID), field+".id")
		}
		seenIDs[p.ID] = true
		pickupIDs[p.ID] = true
	}

	for i := range req.DeliveryPoints {
		d := &req.DeliveryPoints[i]
		d.Name = strings.TrimSpace(d.Name)
		d.Address = strings.TrimSpace(d.Address)
		d.ID = strings.TrimSpace(d.ID)
		d.PickupHint = strings.TrimSpace(d.PickupHint)
		d.Kind = defaultPointKind

		field := fmt.Sprintf("deliveryPoints[%d]", i)
		validatePointCoords(verrs, d.Point, field)

		if d.ID == "" {
			verrs.AddErrorWithField(apperror.CodeValidation, "delivery point id must not be empty", field+".id")
		} else if seenIDs[d.ID] {
			verrs.AddErrorWithField(apperror.CodeValidation, fmt.Sprintf("duplicate point id %q", d.ID), field+".id")
		}
		seenIDs[d.ID] = true

		if d.WeightKg < 0 {
			verrs.AddErrorWithField(apperror.CodeValidation, "weightKg must be >= 0", field+".weightKg")
		}
		if d.Priority < 1 || d.Priority > 10 {
			verrs.AddErrorWithField(apperror.CodeValidation,
				fmt.Sprintf("priority %d is outside [1..10]", d.Priority), field+".priority")
		}
		if d.TimeWindow != nil && !d.TimeWindow.Valid() {
			verrs.AddErrorWithField(apperror.CodeValidation, "timeWindow start must be <= end", field+".timeWindow")
		}
		if d.PickupHint != "" && !pickupIDs[d.PickupHint] {
			verrs.AddErrorWithField(apperror.CodeValidation,
				fmt.Sprintf("pickupHint %q does not name a pickup point in this request", d.PickupHint), field+".pickupHint")
		}
	}

	vehicleIDs := make(map[string]bool, len(req.Fleet))
	for i := range req.Fleet {
		v := &req.Fleet[i]
		v.ID = strings.TrimSpace(v.ID)
		field := fmt.Sprintf("fleet[%d]", i)

		if v.ID == "" {
			verrs.AddErrorWithField(apperror.CodeValidation, "vehicle id must not be empty", field+".id")
		} else if vehicleIDs[v.ID] {
			verrs.AddErrorWithField(apperror.CodeValidation, fmt.Sprintf("duplicate vehicle id %q", v.ID), field+".id")
		}
		vehicleIDs[v.ID] = true

		if v.CapacityKg <= 0 {
			verrs.AddErrorWithField(apperror.CodeValidation, "capacityKg must be > 0", field+".capacityKg")
		}
		if !isFinite(v.StartLat) || !isFinite(v.StartLng) || v.StartLat < -90 || v.StartLat > 90 || v.StartLng < -180 || v.StartLng > 180 {
			verrs.AddErrorWithField(apperror.CodeValidation, "vehicle start coordinates out of range", field+".start")
		}

		if !validVehicleKinds[v.Kind] {
			verrs.AddWarning(apperror.CodeValidation, fmt.Sprintf("vehicle %s: unknown kind %q, defaulting to %q", v.ID, v.Kind, defaultVehicleKind))
			v.Kind = defaultVehicleKind
		}
		if !validVehicleStatuses[v.Status] {
			verrs.AddWarning(apperror.CodeValidation, fmt.Sprintf("vehicle %s: unknown status %q, defaulting to %q", v.ID, v.Status, defaultVehicleState))
			v.Status = defaultVehicleState
		}
	}

	if req.BusinessRules.MaxDriverHours != 0 && (req.BusinessRules.MaxDriverHours < 1 || req.BusinessRules.MaxDriverHours > 24) {
		verrs.AddErrorWithField(apperror.CodeValidation, "businessRules.maxDriverHours must be in [1..24]", "businessRules.maxDriverHours")
	}
	if req.BusinessRules.RestPeriodMin < 0 || req.BusinessRules.RestPeriodMin > 120 {
		verrs.AddErrorWithField(apperror.CodeValidation, "businessRules.restPeriodMin must be in [0..120]", "businessRules.restPeriodMin")
	}
	if req.BusinessRules.MaxConsecutiveDriveHours != 0 && (req.BusinessRules.MaxConsecutiveDriveHours < 1 || req.BusinessRules.MaxConsecutiveDriveHours > 12) {
		verrs.AddErrorWithField(apperror.CodeValidation, "businessRules.maxConsecutiveDriveHours must be in [1..12]", "businessRules.maxConsecutiveDriveHours")
	}
	for i, z := range req.BusinessRules.AllowedZones {
		if !z.Valid() {
			verrs.AddErrorWithField(apperror.CodeValidation, "zone must have >= 3 vertices", fmt.Sprintf("businessRules.allowedZones[%d]", i))
		}
	}
	for i, rz := range req.BusinessRules.RestrictedZones {
		if !rz.Zone.Valid() {
			verrs.AddErrorWithField(apperror.CodeValidation, "zone must have >= 3 vertices", fmt.Sprintf("businessRules.restrictedZones[%d].zone", i))
		}
		if !rz.TimeWindow.Valid() {
			verrs.AddErrorWithField(apperror.CodeValidation, "restricted zone time window start must be <= end", fmt.Sprintf("businessRules.restrictedZones[%d].timeWindow", i))
		}
	}

	if !validWeather[req.Context.Weather] {
		if req.Context.Weather != "" {
			verrs.AddWarning(apperror.CodeValidation, fmt.Sprintf("unknown weather %q, defaulting to %q", req.Context.Weather, defaultWeather))
		}
		req.Context.Weather = defaultWeather
	}
	if !validTraffic[req.Context.Traffic] {
		if req.Context.Traffic != "" {
			verrs.AddWarning(apperror.CodeValidation, fmt.Sprintf("unknown traffic %q, defaulting to %q", req.Context.Traffic, defaultTraffic))
		}
		req.Context.Traffic = defaultTraffic
	}
	if req.Preferences.Distribution != "" && !validDistribution[req.Preferences.Distribution] {
		verrs.AddWarning(apperror.CodeValidation, fmt.Sprintf("unknown distribution %q, defaulting to %q", req.Preferences.Distribution, types.DistributionBestMatch))
		req.Preferences.Distribution = types.DistributionBestMatch
	}
	if req.Preferences.Distribution == "" {
		req.Preferences.Distribution = types.DistributionBestMatch
	}
	if req.Preferences.Weights != nil {
		sum := req.Preferences.Weights.Sum()
		if sum <= 0 {
			verrs.AddWarning(apperror.CodeValidation, "preferences.weights sum to <= 0, ignoring and using the default preset")
			req.Preferences.Weights = nil
		} else if math.Abs(sum-1) > 1e-9 {
			verrs.AddWarning(apperror.CodeValidation, fmt.Sprintf("preferences.weights sum to %.4f, normalizing", sum))
			normalized := req.Preferences.Weights.Normalized()
			req.Preferences.Weights = &normalized
		}
	}

	if verrs.HasErrors() {
		return nil, verrs
	}

	return &Normalized{Request: req}, nil
}

func validatePointCoords(verrs *apperror.ValidationErrors, p fleet.Point, field string) {
	if !isFinite(p.Lat) || !isFinite(p.Lng) {
		verrs.AddErrorWithField(apperror.CodeValidation, "coordinates must be finite", field)
		return
	}
	if p.Lat < -90 || p.Lat > 90 {
		verrs.AddErrorWithField(apperror.CodeValidation, fmt.Sprintf("lat %.6f out of range [-90..90]", p.Lat), field+".lat")
	}
	if p.Lng < -180 || p.Lng > 180 {
		verrs.AddErrorWithField(apperror.CodeValidation, fmt.Sprintf("lng %.6f out of range [-180..180]", p.Lng), field+".lng")
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
