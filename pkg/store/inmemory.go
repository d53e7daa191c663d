package store

import (
	"context"
	"sync"

	"fleetops/pkg/apperror"
	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
)

// InMemoryStore is a process-local Store used by tests and by
// cmd/fleetopsd when no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]fleet.Order
	drivers  map[string]driver.DriverState
	vehicles map[string]fleet.Vehicle
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orders:   make(map[string]fleet.Order),
		drivers:  make(map[string]driver.DriverState),
		vehicles: make(map[string]fleet.Vehicle),
	}
}

func (s *InMemoryStore) GetOrder(_ context.Context, id string) (fleet.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return fleet.Order{}, apperror.ErrNotFound
	}
	return o, nil
}

func (s *InMemoryStore) PutOrder(_ context.Context, o fleet.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *InMemoryStore) ListOrdersByStatus(_ context.Context, status fleet.OrderStatus) ([]fleet.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Order, 0)
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetDriver(_ context.Context, id string) (driver.DriverState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return driver.DriverState{}, apperror.ErrNotFound
	}
	return d, nil
}

func (s *InMemoryStore) PutDriver(_ context.Context, d driver.DriverState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.DriverID] = d
	return nil
}

func (s *InMemoryStore) ListDrivers(_ context.Context) ([]driver.DriverState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]driver.DriverState, 0, len(s.drivers))
	for _, d := range s.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (s *InMemoryStore) GetVehicle(_ context.Context, id string) (fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, apperror.ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) PutVehicle(_ context.Context, v fleet.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
	return nil
}

func (s *InMemoryStore) ListVehicles(_ context.Context) ([]fleet.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fleet.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	return out, nil
}

func (s *InMemoryStore) Close() {}
