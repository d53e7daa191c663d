package store

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"fleetops/pkg/apperror"
	"fleetops/pkg/config"
	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
	"fleetops/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore is the pgx/v5-backed Store implementation, grounded on
// the teacher's pgxpool-construction and goose-migrator shape
// (pkg/database/postgres.go, pkg/database/migrations.go).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against cfg.DSN, pings it, and — if
// cfg.AutoMigrate is set — applies every embedded migration before
// returning.
func NewPostgresStore(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create store pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if cfg.AutoMigrate {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Log.Info("connected to store", "backend", "postgres")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (fleet.Order, error) {
	var o fleet.Order
	var deliveryRaw []byte
	row := s.pool.QueryRow(ctx, `SELECT id, pickup_id, delivery_json, status, driver_id, vehicle_id,
		created_at, sla_deadline, assigned_at, delivered_at, breach_imminent, breach_confirmed
		FROM orders WHERE id = $1`, id)
	if err := row.Scan(&o.ID, &o.PickupID, &deliveryRaw, &o.Status, &o.DriverID, &o.VehicleID,
		&o.CreatedAt, &o.SLADeadline, &o.AssignedAt, &o.DeliveredAt, &o.BreachImminent, &o.BreachConfirmed); err != nil {
		if err == pgx.ErrNoRows {
			return fleet.Order{}, apperror.ErrNotFound
		}
		return fleet.Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := json.Unmarshal(deliveryRaw, &o.Delivery); err != nil {
		return fleet.Order{}, fmt.Errorf("decode order delivery: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) PutOrder(ctx context.Context, o fleet.Order) error {
	deliveryRaw, err := json.Marshal(o.Delivery)
	if err != nil {
		return fmt.Errorf("encode order delivery: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO orders
		(id, pickup_id, delivery_json, status, driver_id, vehicle_id, created_at, sla_deadline,
		 assigned_at, delivered_at, breach_imminent, breach_confirmed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			pickup_id = EXCLUDED.pickup_id, delivery_json = EXCLUDED.delivery_json,
			status = EXCLUDED.status, driver_id = EXCLUDED.driver_id, vehicle_id = EXCLUDED.vehicle_id,
			assigned_at = EXCLUDED.assigned_at, delivered_at = EXCLUDED.delivered_at,
			breach_imminent = EXCLUDED.breach_imminent, breach_confirmed = EXCLUDED.breach_confirmed`,
		o.ID, o.PickupID, deliveryRaw, o.Status, o.DriverID, o.VehicleID, o.CreatedAt, o.SLADeadline,
		o.AssignedAt, o.DeliveredAt, o.BreachImminent, o.BreachConfirmed)
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListOrdersByStatus(ctx context.Context, status fleet.OrderStatus) ([]fleet.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pickup_id, delivery_json, status, driver_id, vehicle_id,
		created_at, sla_deadline, assigned_at, delivered_at, breach_imminent, breach_confirmed
		FROM orders WHERE status = $1`, status)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []fleet.Order
	for rows.Next() {
		var o fleet.Order
		var deliveryRaw []byte
		if err := rows.Scan(&o.ID, &o.PickupID, &deliveryRaw, &o.Status, &o.DriverID, &o.VehicleID,
			&o.CreatedAt, &o.SLADeadline, &o.AssignedAt, &o.DeliveredAt, &o.BreachImminent, &o.BreachConfirmed); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if err := json.Unmarshal(deliveryRaw, &o.Delivery); err != nil {
			return nil, fmt.Errorf("decode order delivery: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetDriver(ctx context.Context, id string) (driver.DriverState, error) {
	var d driver.DriverState
	var lastLocationAt *time.Time
	row := s.pool.QueryRow(ctx, `SELECT driver_id, state, active, active_delivery_id,
		consecutive_deliveries, completed_today, hours_worked_today, last_lat, last_lng,
		last_location_at, state_since, rating FROM drivers WHERE driver_id = $1`, id)
	if err := row.Scan(&d.DriverID, &d.State, &d.Active, &d.ActiveDeliveryID, &d.ConsecutiveDeliveries,
		&d.CompletedToday, &d.HoursWorkedToday, &d.LastLocation.Lat, &d.LastLocation.Lng,
		&lastLocationAt, &d.StateSince, &d.Rating); err != nil {
		if err == pgx.ErrNoRows {
			return driver.DriverState{}, apperror.ErrNotFound
		}
		return driver.DriverState{}, fmt.Errorf("get driver: %w", err)
	}
	if lastLocationAt != nil {
		d.LastLocation.Updated = *lastLocationAt
	}
	return d, nil
}

func (s *PostgresStore) PutDriver(ctx context.Context, d driver.DriverState) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO drivers
		(driver_id, state, active, active_delivery_id, consecutive_deliveries, completed_today,
		 hours_worked_today, last_lat, last_lng, last_location_at, state_since, rating)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (driver_id) DO UPDATE SET
			state = EXCLUDED.state, active = EXCLUDED.active, active_delivery_id = EXCLUDED.active_delivery_id,
			consecutive_deliveries = EXCLUDED.consecutive_deliveries, completed_today = EXCLUDED.completed_today,
			hours_worked_today = EXCLUDED.hours_worked_today, last_lat = EXCLUDED.last_lat,
			last_lng = EXCLUDED.last_lng, last_location_at = EXCLUDED.last_location_at,
			state_since = EXCLUDED.state_since, rating = EXCLUDED.rating`,
		d.DriverID, d.State, d.Active, d.ActiveDeliveryID, d.ConsecutiveDeliveries, d.CompletedToday,
		d.HoursWorkedToday, d.LastLocation.Lat, d.LastLocation.Lng, d.LastLocation.Updated, d.StateSince, d.Rating)
	if err != nil {
		return fmt.Errorf("put driver: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDrivers(ctx context.Context) ([]driver.DriverState, error) {
	rows, err := s.pool.Query(ctx, `SELECT driver_id, state, active, active_delivery_id,
		consecutive_deliveries, completed_today, hours_worked_today, last_lat, last_lng,
		last_location_at, state_since, rating FROM drivers`)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var out []driver.DriverState
	for rows.Next() {
		var d driver.DriverState
		var lastLocationAt *time.Time
		if err := rows.Scan(&d.DriverID, &d.State, &d.Active, &d.ActiveDeliveryID, &d.ConsecutiveDeliveries,
			&d.CompletedToday, &d.HoursWorkedToday, &d.LastLocation.Lat, &d.LastLocation.Lng,
			&lastLocationAt, &d.StateSince, &d.Rating); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		if lastLocationAt != nil {
			d.LastLocation.Updated = *lastLocationAt
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	var v fleet.Vehicle
	row := s.pool.QueryRow(ctx, `SELECT id, kind, capacity_kg, start_lat, start_lng, status
		FROM vehicles WHERE id = $1`, id)
	if err := row.Scan(&v.ID, &v.Kind, &v.CapacityKg, &v.StartLat, &v.StartLng, &v.Status); err != nil {
		if err == pgx.ErrNoRows {
			return fleet.Vehicle{}, apperror.ErrNotFound
		}
		return fleet.Vehicle{}, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) PutVehicle(ctx context.Context, v fleet.Vehicle) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO vehicles (id, kind, capacity_kg, start_lat, start_lng, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, capacity_kg = EXCLUDED.capacity_kg,
			start_lat = EXCLUDED.start_lat, start_lng = EXCLUDED.start_lng, status = EXCLUDED.status`,
		v.ID, v.Kind, v.CapacityKg, v.StartLat, v.StartLng, v.Status)
	if err != nil {
		return fmt.Errorf("put vehicle: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, kind, capacity_kg, start_lat, start_lng, status FROM vehicles`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []fleet.Vehicle
	for rows.Next() {
		var v fleet.Vehicle
		if err := rows.Scan(&v.ID, &v.Kind, &v.CapacityKg, &v.StartLat, &v.StartLng, &v.Status); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
