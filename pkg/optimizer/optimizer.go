// Package optimizer implements the coordinator (C7): the stateless
// orchestration of validate -> matrix -> cluster -> sequence ->
// distribute -> summarize, under a single deadline, grounded on the
// phase-decomposition idiom of the teacher's SolverService (small
// private methods, one per pipeline stage, each returning early on
// failure rather than nesting).
package optimizer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fleetops/pkg/apperror"
	"fleetops/pkg/fleet"
	"fleetops/pkg/metrics"
	"fleetops/pkg/optimizer/cluster"
	"fleetops/pkg/optimizer/distribute"
	"fleetops/pkg/optimizer/matrix"
	"fleetops/pkg/optimizer/sequence"
	"fleetops/pkg/optimizer/types"
	"fleetops/pkg/optimizer/validate"
)

// Coordinator runs the route optimization pipeline. It is stateless
// beyond the metrics sink it reports to; callers may share one instance
// across concurrent Optimize calls.
type Coordinator struct {
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// New builds a Coordinator with the given metrics sink and per-call
// deadline.
func New(m *metrics.Metrics, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Coordinator{Metrics: m, Timeout: timeout}
}

// Optimize runs the full pipeline for one request. Every returned error
// is an *apperror.Error; a deadline exceeded mid-pipeline surfaces as
// CodeTimeout, and any failure in phases 2-6 is wrapped as
// CodeOptimizationFailed, matching §4.6 "coordinator never returns the
// panic or internal error of a phase directly".
func (c *Coordinator) Optimize(ctx context.Context, req types.OptimizationRequest) (*types.OptimizationResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	requestID := uuid.NewString()
	timings := make(map[string]float64)

	result, err := c.run(ctx, requestID, req, timings)

	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		if apperror.GetCode(err) == apperror.CodeTimeout {
			status = "timeout"
		}
	}
	if c.Metrics != nil {
		routes := 0
		if result != nil {
			routes = len(result.Routes)
		}
		c.Metrics.RecordOptimizationRun(status, duration, routes, string(req.Preferences.Distribution))
		for phase, ms := range timings {
			c.Metrics.RecordPhase(phase, time.Duration(ms*float64(time.Millisecond)))
		}
	}

	return result, err
}

func (c *Coordinator) run(ctx context.Context, requestID string, req types.OptimizationRequest, timings map[string]float64) (res *types.OptimizationResult, err error) {
	phase := "validate"
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = apperror.New(apperror.CodeOptimizationFailed, "optimization failed in phase "+phase).WithDetails("phase", phase)
		}
	}()

	normalized, ms, err := c.validatePhase(req)
	timings["validate"] = ms
	if err != nil {
		return nil, err // validation errors pass through untouched (§4.6)
	}
	if err := ctx.Err(); err != nil {
		return nil, deadlineErr(err)
	}
	nreq := normalized.Request

	phase = "matrix"
	m, ms := c.matrixPhase(nreq)
	timings["matrix"] = ms
	if err := ctx.Err(); err != nil {
		return nil, deadlineErr(err)
	}

	phase = "cluster"
	weights := resolveWeights(nreq.Preferences)
	clusterResult, ms := c.clusterPhase(nreq, m, weights)
	timings["cluster"] = ms
	if err := ctx.Err(); err != nil {
		return nil, deadlineErr(err)
	}

	phase = "distribute"
	outcome, ms := c.distributePhase(nreq, clusterResult, m)
	timings["distribute"] = ms
	if err := ctx.Err(); err != nil {
		return nil, deadlineErr(err)
	}

	phase = "sequence"
	routes, ms := c.sequencePhase(outcome.Clusters, m)
	timings["sequence"] = ms

	phase = "summarize"
	summary := summarize(routes)

	return &types.OptimizationResult{
		RequestID:     requestID,
		Routes:        routes,
		Summary:       summary,
		Unserviceable: outcome.Unserviceable,
		Timings:       timings,
	}, nil
}

func (c *Coordinator) validatePhase(req types.OptimizationRequest) (*validate.Normalized, float64, error) {
	start := time.Now()
	n, err := validate.Validate(req)
	return n, elapsedMs(start), err
}

func (c *Coordinator) matrixPhase(req types.OptimizationRequest) (*matrix.Matrix, float64) {
	start := time.Now()
	points := make([]fleet.Point, 0, len(req.PickupPoints)+len(req.DeliveryPoints))
	points = append(points, req.PickupPoints...)
	for _, d := range req.DeliveryPoints {
		points = append(points, d.Point)
	}
	return matrix.Build(points), elapsedMs(start)
}

func (c *Coordinator) clusterPhase(req types.OptimizationRequest, m *matrix.Matrix, weights types.ClusterWeights) (cluster.Result, float64) {
	start := time.Now()
	result := cluster.Run(req.PickupPoints, req.DeliveryPoints, req.Fleet, m, weights)
	return result, elapsedMs(start)
}

// distributePhase hands the full cluster.Result to the distributor,
// including clusterResult.Rankings — the whole available fleet scored
// per pickup, not just each pickup's winner. distribute.Run uses that to
// recruit idle vehicles onto a route when load-balancing needs them,
// rather than only ever moving deliveries between vehicles that already
// won a pickup.
func (c *Coordinator) distributePhase(req types.OptimizationRequest, clusterResult cluster.Result, m *matrix.Matrix) (distribute.Outcome, float64) {
	start := time.Now()
	outcome := distribute.Run(clusterResult, req.BusinessRules, m, req.Preferences.Distribution)
	return outcome, elapsedMs(start)
}

func (c *Coordinator) sequencePhase(clusters []types.Cluster, m *matrix.Matrix) ([]types.Route, float64) {
	start := time.Now()
	routes := buildRoutes(clusters, m)
	return routes, elapsedMs(start)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func deadlineErr(err error) error {
	return apperror.Wrap(err, apperror.CodeTimeout, "optimization exceeded its deadline")
}

func resolveWeights(p types.Preferences) types.ClusterWeights {
	if p.Weights != nil {
		return *p.Weights
	}
	if p.Preset != "" {
		return types.WeightsForPreset(p.Preset)
	}
	return types.DefaultWeights()
}

func buildRoutes(clusters []types.Cluster, m *matrix.Matrix) []types.Route {
	clusters = distribute.SortClustersByVehicleID(clusters)
	routes := make([]types.Route, 0, len(clusters))

	for _, c := range clusters {
		durations := m.DurationTable(c.Vehicle.Kind, nil)
		seq := sequence.Build(c.Pickup, c.Deliveries, m, durations)

		deliveryByID := make(map[string]fleet.DeliveryPoint, len(c.Deliveries))
		for _, d := range c.Deliveries {
			deliveryByID[d.ID] = d
		}

		waypoints := make([]types.Waypoint, 0, len(seq.PointIDs))
		for _, id := range seq.PointIDs {
			if id == c.Pickup.ID {
				waypoints = append(waypoints, types.Waypoint{PointRef: id, Kind: types.WaypointPickup})
				continue
			}
			var tw *fleet.TimeWindow
			if d, ok := deliveryByID[id]; ok {
				tw = d.TimeWindow
			}
			waypoints = append(waypoints, types.Waypoint{PointRef: id, Kind: types.WaypointDelivery, TimeWindow: tw})
		}

		routes = append(routes, types.Route{
			ID:                 "route-" + c.Vehicle.ID,
			Vehicle:            c.Vehicle,
			Waypoints:          waypoints,
			TotalDistanceKm:    seq.TotalDistanceKm,
			TotalDurationMin:   seq.TotalDurationMin,
			LoadKg:             c.TotalLoadKg,
			ClusteringMetadata: clusteringMetadata(c),
		})
	}

	return routes
}

func clusteringMetadata(c types.Cluster) types.ClusteringMetadata {
	var avgScore, density float64
	if len(c.Breakdown) > 0 {
		for _, fb := range c.Breakdown {
			avgScore += fb.Score
		}
		avgScore /= float64(len(c.Breakdown))
	}
	if fb, ok := c.Breakdown[types.FactorDeliveryClusterDensity]; ok {
		density = fb.Value
	}
	return types.ClusteringMetadata{AvgScore: avgScore, ClusterDensity: density}
}

func summarize(routes []types.Route) types.Summary {
	s := types.Summary{RouteCount: len(routes), VehiclesUsed: len(routes)}
	var totalLoad float64
	for _, r := range routes {
		s.DeliveryCount += r.DeliveryCount()
		s.TotalDistanceKm += r.TotalDistanceKm
		s.TotalDurationMin += r.TotalDurationMin
		totalLoad += r.LoadKg
	}
	if len(routes) > 0 {
		s.AvgDeliveriesPerVehicle = float64(s.DeliveryCount) / float64(len(routes))
		s.AvgLoadPerVehicle = totalLoad / float64(len(routes))
	}
	return s
}
