package validate

import (
	"math"
	"testing"

	"fleetops/pkg/apperror"
	"fleetops/pkg/fleet"
	"fleetops/pkg/optimizer/types"
)

func baseRequest() types.OptimizationRequest {
	return types.OptimizationRequest{
		PickupPoints: []fleet.Point{
			{ID: "p1", Lat: 24.71, Lng: 46.67, Name: "Warehouse"},
		},
		DeliveryPoints: []fleet.DeliveryPoint{
			{
				Point:    fleet.Point{ID: "d1", Lat: 24.72, Lng: 46.68, Name: "Customer"},
				WeightKg: 10,
				Priority: 5,
			},
		},
		Fleet: []fleet.Vehicle{
			{ID: "v1", Kind: fleet.VehicleKindTruck, CapacityKg: 100, Status: fleet.VehicleStatusAvailable},
		},
	}
}

func TestValidate_AcceptsWellFormedRequest(t *testing.T) {
	n, err := Validate(baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Request.Preferences.Distribution != types.DistributionBestMatch {
		t.Errorf("expected default distribution best_match, got %q", n.Request.Preferences.Distribution)
	}
}

func TestValidate_RejectsEmptyPoints(t *testing.T) {
	req := baseRequest()
	req.PickupPoints = nil
	req.DeliveryPoints = nil

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for empty points")
	}
	if !apperror.Is(err, apperror.CodeValidation) {
		t.Errorf("expected CodeValidation, got %v", apperror.GetCode(err))
	}
}

func TestValidate_RejectsTooManyPoints(t *testing.T) {
	req := baseRequest()
	for i := 0; i < maxPoints; i++ {
		req.DeliveryPoints = append(req.DeliveryPoints, fleet.DeliveryPoint{
			Point:    fleet.Point{ID: "extra", Lat: 1, Lng: 1},
			Priority: 5,
		})
	}

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for too many points")
	}
}

func TestValidate_RejectsEmptyFleet(t *testing.T) {
	req := baseRequest()
	req.Fleet = nil

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for empty fleet")
	}
}

func TestValidate_RejectsOutOfRangeCoordinates(t *testing.T) {
	req := baseRequest()
	req.PickupPoints[0].Lat = 200

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for out-of-range latitude")
	}
}

func TestValidate_RejectsNonFiniteCoordinates(t *testing.T) {
	req := baseRequest()
	req.Fleet[0].StartLat = math.NaN()

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for non-finite vehicle coordinates")
	}
}

func TestValidate_RejectsPriorityOutOfRange(t *testing.T) {
	req := baseRequest()
	req.DeliveryPoints[0].Priority = 11

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for priority out of [1..10]")
	}
}

func TestValidate_RejectsDuplicateIDs(t *testing.T) {
	req := baseRequest()
	req.DeliveryPoints[0].ID = "p1" // collides with the pickup id

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for duplicate point id")
	}
}

func TestValidate_RejectsUnknownPickupHint(t *testing.T) {
	req := baseRequest()
	req.DeliveryPoints[0].PickupHint = "does-not-exist"

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for an unresolved pickupHint")
	}
}

func TestValidate_AcceptsKnownPickupHint(t *testing.T) {
	req := baseRequest()
	req.DeliveryPoints[0].PickupHint = "p1"

	if _, err := Validate(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DefaultsUnknownVehicleKind(t *testing.T) {
	req := baseRequest()
	req.Fleet[0].Kind = "spaceship"

	n, err := Validate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Request.Fleet[0].Kind != defaultVehicleKind {
		t.Errorf("expected default kind %q, got %q", defaultVehicleKind, n.Request.Fleet[0].Kind)
	}
}

func TestValidate_DefaultsUnknownVehicleStatus(t *testing.T) {
	req := baseRequest()
	req.Fleet[0].Status = "sleeping"

	n, err := Validate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Request.Fleet[0].Status != defaultVehicleState {
		t.Errorf("expected default status %q, got %q", defaultVehicleState, n.Request.Fleet[0].Status)
	}
}

func TestValidate_DefaultsUnknownWeatherAndTraffic(t *testing.T) {
	req := baseRequest()
	req.Context.Weather = "hurricane"
	req.Context.Traffic = "gridlock"

	n, err := Validate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Request.Context.Weather != defaultWeather {
		t.Errorf("expected default weather, got %q", n.Request.Context.Weather)
	}
	if n.Request.Context.Traffic != defaultTraffic {
		t.Errorf("expected default traffic, got %q", n.Request.Context.Traffic)
	}
}

func TestValidate_NormalizesNonUnitWeightSum(t *testing.T) {
	req := baseRequest()
	weights := types.ClusterWeights{
		VehicleToPickupDistance:    1,
		PickupToDeliveryDistance:   1,
		DeliveryClusterDensity:     1,
		VehicleLoadBalance:         1,
		ExistingRouteCompatibility: 1,
	}
	req.Preferences.Weights = &weights

	n, err := Validate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := n.Request.Preferences.Weights
	if got == nil {
		t.Fatal("expected normalized weights to be kept")
	}
	sum := got.Sum()
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("expected normalized weights to sum to 1, got %v", sum)
	}
}

func TestValidate_TrimsWhitespaceFromStringFields(t *testing.T) {
	req := baseRequest()
	req.PickupPoints[0].Name = "  Warehouse  "
	req.PickupPoints[0].ID = " p1 "
	req.DeliveryPoints[0].Point.ID = "d1" // keep matching but re-trim name
	req.DeliveryPoints[0].Name = "  Customer  "

	n, err := Validate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Request.PickupPoints[0].Name != "Warehouse" {
		t.Errorf("expected trimmed name, got %q", n.Request.PickupPoints[0].Name)
	}
	if n.Request.PickupPoints[0].ID != "p1" {
		t.Errorf("expected trimmed id, got %q", n.Request.PickupPoints[0].ID)
	}
}

func TestValidate_RejectsBadBusinessRules(t *testing.T) {
	req := baseRequest()
	req.BusinessRules.MaxDriverHours = 30
	req.BusinessRules.RestPeriodMin = -1

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for out-of-range business rules")
	}
}

func TestValidate_RejectsMalformedZone(t *testing.T) {
	req := baseRequest()
	req.BusinessRules.AllowedZones = []fleet.Zone{
		{Name: "too-small", Vertices: []fleet.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}},
	}

	_, err := Validate(req)
	if err == nil {
		t.Fatal("expected a validation error for a zone with < 3 vertices")
	}
}
