// Package repositories provides typed access to the relational store. Each
// repository holds a write connection and a read-only replica; pipeline
// reads go through the replica.
package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/fossiltrack/internal/models"
)

// UpsertStats counts the outcome of a batched upsert
type UpsertStats struct {
	Inserted   int
	Duplicated int
	Failed     int
}

// ShipRepository provides access to ship data
type ShipRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewShipRepository creates a new ship repository
func NewShipRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ShipRepository {
	return &ShipRepository{db: db, readOnlyDB: readOnlyDB}
}

// GetByIMO gets a ship by its IMO number
func (r *ShipRepository) GetByIMO(ctx context.Context, imo string) (*models.Ship, error) {
	var ship models.Ship
	err := r.readOnlyDB.WithContext(ctx).Where("imo = ?", imo).First(&ship).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ship by IMO")
	}
	return &ship, nil
}

// ListMonitored lists ships at or above the deadweight floor
func (r *ShipRepository) ListMonitored(ctx context.Context, minDWT float64) ([]models.Ship, error) {
	var ships []models.Ship
	err := r.readOnlyDB.WithContext(ctx).Where("dwt >= ?", minDWT).Find(&ships).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list monitored ships")
	}
	return ships, nil
}

// Upsert inserts or refreshes a ship keyed on IMO
func (r *ShipRepository) Upsert(ctx context.Context, ship *models.Ship) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "imo"}},
		UpdateAll: true,
	}).Create(ship).Error
}

// PortRepository provides access to port data
type PortRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPortRepository creates a new port repository
func NewPortRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PortRepository {
	return &PortRepository{db: db, readOnlyDB: readOnlyDB}
}

// GetByID gets a port by its identifier
func (r *PortRepository) GetByID(ctx context.Context, id string) (*models.Port, error) {
	var port models.Port
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&port).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get port by ID")
	}
	return &port, nil
}

// ListAll lists every known port
func (r *PortRepository) ListAll(ctx context.Context) ([]models.Port, error) {
	var ports []models.Port
	err := r.readOnlyDB.WithContext(ctx).Find(&ports).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ports")
	}
	return ports, nil
}

// Upsert inserts or refreshes a port keyed on its identifier
func (r *PortRepository) Upsert(ctx context.Context, port *models.Port) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(port).Error
}

// PortCallRepository provides access to raw port calls
type PortCallRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPortCallRepository creates a new port call repository
func NewPortCallRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PortCallRepository {
	return &PortCallRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts port calls on their business key. Conflicting rows
// count as duplicated, per-row failures are counted and skipped so the rest
// of the batch proceeds.
func (r *PortCallRepository) UpsertBatch(ctx context.Context, calls []models.PortCall) (UpsertStats, error) {
	var stats UpsertStats
	for i := range calls {
		res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ship_imo"}, {Name: "timestamp"}, {Name: "move_type"}},
			DoNothing: true,
		}).Create(&calls[i])
		if res.Error != nil {
			stats.Failed++
			continue
		}
		if res.RowsAffected == 0 {
			stats.Duplicated++
			continue
		}
		stats.Inserted++
	}
	return stats, nil
}

// ListByShip lists a ship's port calls within a window, ordered by time
func (r *PortCallRepository) ListByShip(ctx context.Context, imo string, from, to time.Time) ([]models.PortCall, error) {
	var calls []models.PortCall
	err := r.readOnlyDB.WithContext(ctx).
		Where("ship_imo = ? AND timestamp >= ? AND timestamp <= ?", imo, from, to).
		Order("timestamp asc").
		Find(&calls).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list port calls")
	}
	return calls, nil
}

// EventRepository provides access to ship interaction events
type EventRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) *EventRepository {
	return &EventRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts events, ignoring already-known ones
func (r *EventRepository) UpsertBatch(ctx context.Context, events []models.Event) (UpsertStats, error) {
	var stats UpsertStats
	for i := range events {
		res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&events[i])
		if res.Error != nil {
			stats.Failed++
			continue
		}
		if res.RowsAffected == 0 {
			stats.Duplicated++
			continue
		}
		stats.Inserted++
	}
	return stats, nil
}

// ListSTS lists ship-to-ship events within a window
func (r *EventRepository) ListSTS(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.readOnlyDB.WithContext(ctx).
		Where("kind IN ? AND timestamp >= ? AND timestamp <= ?",
			[]models.EventKind{models.EventSTSStart, models.EventSTSEnd}, from, to).
		Order("timestamp asc").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list STS events")
	}
	return events, nil
}

// PositionRepository provides access to position data
type PositionRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts positions, ignoring duplicates
func (r *PositionRepository) UpsertBatch(ctx context.Context, positions []models.Position) (UpsertStats, error) {
	var stats UpsertStats
	for i := range positions {
		res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&positions[i])
		if res.Error != nil {
			stats.Failed++
			continue
		}
		if res.RowsAffected == 0 {
			stats.Duplicated++
			continue
		}
		stats.Inserted++
	}
	return stats, nil
}

// Window lists a ship's positions within a time window, ordered by time
func (r *PositionRepository) Window(ctx context.Context, imo string, from, to time.Time) ([]models.Position, error) {
	var positions []models.Position
	err := r.readOnlyDB.WithContext(ctx).
		Where("ship_imo = ? AND timestamp >= ? AND timestamp <= ?", imo, from, to).
		Order("timestamp asc").
		Find(&positions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list positions")
	}
	return positions, nil
}
