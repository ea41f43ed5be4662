package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/voyage"
)

// ShipmentRepository provides access to reconstructed shipments and their
// endpoints
type ShipmentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db, readOnlyDB: readOnlyDB}
}

// ReplaceForShip persists a build pass for one ship in a single
// transaction. Endpoints upsert on their backing portcall or event,
// shipments on their departure. A reclassified arrival cascades: the stale
// arrival row and the berth attachments hanging off the shipment are
// removed before the new endpoint is written.
func (r *ShipmentRepository) ReplaceForShip(ctx context.Context, imo string, voyages []voyage.Voyage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range voyages {
			v := &voyages[i]
			if v.ShipIMO != imo {
				continue
			}

			dep := v.Departure
			if err := tx.Clauses(clause.OnConflict{
				Columns:   conflictTarget(dep.PortCallID != nil),
				DoUpdates: clause.AssignmentColumns([]string{"port_id", "timestamp"}),
			}).Create(&dep).Error; err != nil {
				return errors.Wrap(err, "failed to upsert departure")
			}
			// Re-read so the shipment references the surviving row id
			if err := reloadDeparture(tx, &dep); err != nil {
				return err
			}

			var shipment models.Shipment
			err := tx.Where("departure_id = ?", dep.ID).First(&shipment).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				shipment = models.Shipment{
					ID:          uuid.New(),
					ShipIMO:     v.ShipIMO,
					DepartureID: dep.ID,
					Status:      v.Status,
					IsSTS:       v.IsSTS,
					STSEventID:  v.STSEventID,
					Commodity:   v.Commodity,
					Quantity:    v.Quantity,
					Unit:        v.Unit,
				}
			case err != nil:
				return errors.Wrap(err, "failed to look up shipment")
			}

			if v.Arrival != nil {
				arr := *v.Arrival
				if err := tx.Clauses(clause.OnConflict{
					Columns:   conflictTarget(arr.PortCallID != nil),
					DoUpdates: clause.AssignmentColumns([]string{"port_id", "timestamp"}),
				}).Create(&arr).Error; err != nil {
					return errors.Wrap(err, "failed to upsert arrival")
				}
				if err := reloadArrival(tx, &arr); err != nil {
					return err
				}

				if shipment.ArrivalID != nil && *shipment.ArrivalID != arr.ID {
					if err := cascadeReclassifiedArrival(tx, &shipment); err != nil {
						return err
					}
				}
				shipment.ArrivalID = &arr.ID
			} else if shipment.ArrivalID != nil {
				if err := cascadeReclassifiedArrival(tx, &shipment); err != nil {
					return err
				}
				shipment.ArrivalID = nil
			}

			shipment.Status = v.Status
			shipment.Commodity = v.Commodity
			shipment.Quantity = v.Quantity
			shipment.Unit = v.Unit

			if err := tx.Save(&shipment).Error; err != nil {
				return errors.Wrap(err, "failed to save shipment")
			}
		}
		return nil
	})
}

func conflictTarget(portcallBacked bool) []clause.Column {
	if portcallBacked {
		return []clause.Column{{Name: "port_call_id"}}
	}
	return []clause.Column{{Name: "event_id"}}
}

func reloadDeparture(tx *gorm.DB, dep *models.Departure) error {
	q := tx.Model(&models.Departure{})
	if dep.PortCallID != nil {
		q = q.Where("port_call_id = ?", *dep.PortCallID)
	} else {
		q = q.Where("event_id = ?", *dep.EventID)
	}
	if err := q.First(dep).Error; err != nil {
		return errors.Wrap(err, "failed to reload departure")
	}
	return nil
}

func reloadArrival(tx *gorm.DB, arr *models.Arrival) error {
	q := tx.Model(&models.Arrival{})
	if arr.PortCallID != nil {
		q = q.Where("port_call_id = ?", *arr.PortCallID)
	} else {
		q = q.Where("event_id = ?", *arr.EventID)
	}
	if err := q.First(arr).Error; err != nil {
		return errors.Wrap(err, "failed to reload arrival")
	}
	return nil
}

// cascadeReclassifiedArrival drops the rows derived from a superseded
// arrival so the shipment can be re-enriched against the new endpoint
func cascadeReclassifiedArrival(tx *gorm.DB, shipment *models.Shipment) error {
	if err := tx.Where("shipment_id = ?", shipment.ID).
		Delete(&models.ShipmentBerth{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete stale berth attachments")
	}
	if err := tx.Where("id = ?", *shipment.ArrivalID).
		Delete(&models.Arrival{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete superseded arrival")
	}
	return nil
}

// ListByStatus lists shipments in the given status
func (r *ShipmentRepository) ListByStatus(ctx context.Context, status models.ShipmentStatus) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Departure").Preload("Arrival").
		Where("status = ?", status).
		Find(&shipments).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shipments by status")
	}
	return shipments, nil
}

// ListAll lists every shipment with endpoints preloaded
func (r *ShipmentRepository) ListAll(ctx context.Context) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Departure").Preload("Arrival").
		Find(&shipments).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shipments")
	}
	return shipments, nil
}

// ListDepartures lists every departure endpoint
func (r *ShipmentRepository) ListDepartures(ctx context.Context) ([]models.Departure, error) {
	var departures []models.Departure
	err := r.readOnlyDB.WithContext(ctx).Find(&departures).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list departures")
	}
	return departures, nil
}

// BerthRepository provides access to berths and their shipment attachments
type BerthRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewBerthRepository creates a new berth repository
func NewBerthRepository(db *gorm.DB, readOnlyDB *gorm.DB) *BerthRepository {
	return &BerthRepository{db: db, readOnlyDB: readOnlyDB}
}

// ListAll lists every berth polygon
func (r *BerthRepository) ListAll(ctx context.Context) ([]models.Berth, error) {
	var berths []models.Berth
	err := r.readOnlyDB.WithContext(ctx).Find(&berths).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list berths")
	}
	return berths, nil
}

// Attach records the berth detected for one shipment end, replacing any
// previous detection for that end
func (r *BerthRepository) Attach(ctx context.Context, attachment *models.ShipmentBerth) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shipment_id"}, {Name: "end"}},
		DoUpdates: clause.AssignmentColumns([]string{"berth_id", "position_id"}),
	}).Create(attachment).Error
}

// Attachments lists the berth attachments for a set of shipments
func (r *BerthRepository) Attachments(ctx context.Context) ([]models.ShipmentBerth, error) {
	var out []models.ShipmentBerth
	err := r.readOnlyDB.WithContext(ctx).Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list berth attachments")
	}
	return out, nil
}
