// Package store defines the opaque persistence collaborator of §6: CRUD
// and range-scan access to orders, drivers, and vehicles. No SQL/KV
// shape is part of the contract — callers (the automation engines) only
// ever see this interface, wrapped in a circuit breaker.
package store

import (
	"context"

	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
)

// Store is implemented by a concrete backend (postgres, inmemory).
type Store interface {
	// Orders
	GetOrder(ctx context.Context, id string) (fleet.Order, error)
	PutOrder(ctx context.Context, o fleet.Order) error
	ListOrdersByStatus(ctx context.Context, status fleet.OrderStatus) ([]fleet.Order, error)

	// Drivers
	GetDriver(ctx context.Context, id string) (driver.DriverState, error)
	PutDriver(ctx context.Context, d driver.DriverState) error
	ListDrivers(ctx context.Context) ([]driver.DriverState, error)

	// Vehicles
	GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error)
	PutVehicle(ctx context.Context, v fleet.Vehicle) error
	ListVehicles(ctx context.Context) ([]fleet.Vehicle, error)

	Close()
}
