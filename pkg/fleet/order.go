package fleet

import "time"

// OrderStatus is the closed vocabulary of order lifecycle states the
// dispatch, batching, and SLA engines drive (§4.7).
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderAssigned   OrderStatus = "assigned"
	OrderInProgress OrderStatus = "in_progress"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Order pairs a delivery with the pickup it originates from and the
// dispatch/SLA bookkeeping the automation engines maintain on it. Orders
// are process-long and shared, persisted through pkg/store, and mutated
// only by the engine that owns the relevant transition.
type Order struct {
	ID              string
	PickupID        string
	Delivery        DeliveryPoint
	Status          OrderStatus
	DriverID        string
	VehicleID       string
	CreatedAt       time.Time
	SLADeadline     time.Time
	AssignedAt      *time.Time
	DeliveredAt     *time.Time
	BreachImminent  bool
	BreachConfirmed bool
}
