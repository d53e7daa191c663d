// Package driver implements the driver-state guard of §4.5: the
// five-valued state machine governing whether a driver may be assigned
// an order, and the assignment-priority scoring used by the dispatch
// engine (C10). DriverState is process-long and shared; this package is
// the single place allowed to mutate it, via a compare-and-swap
// transition function, matching the teacher's "single function owns all
// mutation of shared state" idiom (pkg/domain/graph.go's mutex-guarded
// AddNode/AddEdge).
package driver

import (
	"time"
)

// State is the closed vocabulary of driver states (§3, §4.5).
type State string

const (
	StateOffline   State = "offline"
	StateAvailable State = "available"
	StateBusy      State = "busy"
	StateReturning State = "returning"
	StateOnBreak   State = "on_break"
)

// Location is a coarse last-known driver position with a freshness
// timestamp; the guard uses Updated to evaluate location freshness.
type Location struct {
	Lat     float64
	Lng     float64
	Updated time.Time
}

// DriverState is the mutable, process-long record the dispatch engine
// and the state-transition function in this package read and write. All
// other callers must treat it as read-only.
type DriverState struct {
	DriverID             string
	State                State
	Active               bool
	ActiveDeliveryID     string
	ConsecutiveDeliveries int
	CompletedToday        int
	HoursWorkedToday       float64
	LastLocation           Location
	StateSince             time.Time
	Rating                 float64 // 0..5, used by the dispatch score
}

// Guard is the tunable thresholds the guard and scoring formula read
// from configuration (§4.5, §9 Open Question 2).
type Guard struct {
	MaxWorkingHours      float64
	BreakThresholdCount  int
	TargetDeliveries     int
	LocationFreshness    time.Duration
	ReturnRadiusKm       float64
	BreakDuration        time.Duration
}

// DefaultGuard matches the spec's documented defaults: a 5-minute
// location-freshness window (§9 Open Question 2 resolved to 5 min, not
// the 2-minute alternative seen elsewhere), a 15-minute break, and a
// 15 km return radius.
func DefaultGuard() Guard {
	return Guard{
		MaxWorkingHours:     10,
		BreakThresholdCount: 6,
		TargetDeliveries:    20,
		LocationFreshness:   5 * time.Minute,
		ReturnRadiusKm:      15,
		BreakDuration:       15 * time.Minute,
	}
}

// CanAccept implements the §4.5 guard formula:
//
//	active ∧ state=available ∧ hoursWorkedToday<max ∧
//	consecutiveDeliveries<breakThreshold ∧ completedToday<target ∧
//	locationFresh
func CanAccept(d DriverState, g Guard, now time.Time) bool {
	if !d.Active || d.State != StateAvailable {
		return false
	}
	if d.HoursWorkedToday >= g.MaxWorkingHours {
		return false
	}
	if d.ConsecutiveDeliveries >= g.BreakThresholdCount {
		return false
	}
	if d.CompletedToday >= g.TargetDeliveries {
		return false
	}
	if now.Sub(d.LastLocation.Updated) >= g.LocationFreshness {
		return false
	}
	return true
}

// Event is one of the triggers in the §4.5 transition table.
type Event string

const (
	EventShiftStart        Event = "shift_start"
	EventAssignmentAccepted Event = "assignment_accepted"
	EventDeliveryComplete  Event = "delivery_complete"
	EventArrivedAtBase     Event = "arrived_at_base"
	EventMarkAvailable     Event = "mark_available"
	EventBreakThreshold    Event = "break_threshold"
	EventManualBreak       Event = "manual_break"
	EventBreakElapsed      Event = "break_elapsed"
	EventShiftEnd          Event = "shift_end"
	EventEmergency         Event = "emergency"
)

// TransitionInput carries the facts a transition needs beyond the
// current DriverState: the requested Event (manual requests arrive as
// EventMarkAvailable or EventManualBreak), the distance from the driver's
// current location to base (used by the busy->available/returning split)
// and the current time.
type TransitionInput struct {
	Event            Event
	DistanceToBaseKm float64
	Now              time.Time
}

// Transition applies a compare-and-swap state transition: it validates
// the requested Event is legal from d.State under the current facts and,
// if so, returns the updated DriverState and true. An illegal transition
// returns d unchanged and false — the caller (dispatch engine) must not
// treat that as an error, only as "the order stays pending" per §4.7.
func Transition(d DriverState, in TransitionInput, g Guard) (DriverState, bool) {
	next := d
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch in.Event {
	case EventShiftStart:
		if d.State != StateOffline || !d.Active {
			return d, false
		}
		next.State = StateAvailable

	case EventAssignmentAccepted:
		if !CanAccept(d, g, now) {
			return d, false
		}
		next.State = StateBusy

	case EventDeliveryComplete:
		if d.State != StateBusy {
			return d, false
		}
		next.ConsecutiveDeliveries++
		next.CompletedToday++
		next.ActiveDeliveryID = ""
		if in.DistanceToBaseKm < g.ReturnRadiusKm {
			next.State = StateAvailable
		} else {
			next.State = StateReturning
		}

	case EventArrivedAtBase, EventMarkAvailable:
		if d.State != StateReturning {
			return d, false
		}
		next.State = StateAvailable

	case EventBreakThreshold, EventManualBreak:
		if d.State != StateAvailable && d.State != StateReturning {
			return d, false
		}
		if d.ActiveDeliveryID != "" {
			return d, false
		}
		next.State = StateOnBreak

	case EventBreakElapsed:
		if d.State != StateOnBreak {
			return d, false
		}
		if now.Sub(d.StateSince) < g.BreakDuration {
			return d, false
		}
		next.State = StateAvailable
		next.ConsecutiveDeliveries = 0

	case EventShiftEnd:
		if d.ActiveDeliveryID != "" {
			return d, false
		}
		next.State = StateOffline

	case EventEmergency:
		next.State = StateOffline
		next.ActiveDeliveryID = ""

	default:
		return d, false
	}

	next.StateSince = now
	return next, true
}

// AssignmentScore computes the §4.5 dispatch priority score for a
// candidate driver against an open order, in [0, 100]; higher wins.
// distanceKm is the driver's distance to the order's pickup; maxDistKm
// bounds the distance factor; gap is targetDeliveries - completedToday.
func AssignmentScore(d DriverState, distanceKm, maxDistKm float64, gap int) float64 {
	var stateFactor float64
	switch d.State {
	case StateAvailable:
		stateFactor = 40
	case StateReturning:
		stateFactor = 20
	default:
		stateFactor = 0
	}

	distanceFactor := 0.0
	if maxDistKm > 0 {
		ratio := 1 - distanceKm/maxDistKm
		if ratio < 0 {
			ratio = 0
		}
		distanceFactor = 30 * ratio
	}

	ratingFactor := (d.Rating / 5) * 15

	targetGapFactor := float64(gap) * 2
	if targetGapFactor > 15 {
		targetGapFactor = 15
	}
	if targetGapFactor < 0 {
		targetGapFactor = 0
	}

	return stateFactor + distanceFactor + ratingFactor + targetGapFactor
}
