package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/trades"
	"example.com/fossiltrack/internal/voyage"
)

// PriceRepository provides access to price rows
type PriceRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db, readOnlyDB: readOnlyDB}
}

// ListRange lists price rows for a date range across all scenarios
func (r *PriceRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.Price, error) {
	var prices []models.Price
	err := r.readOnlyDB.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Find(&prices).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list prices")
	}
	return prices, nil
}

// ReplaceRange swaps the price rows for a date window in one transaction.
// Prices are recomputed upstream for whole windows, so a refresh replaces
// rather than merges.
func (r *PriceRepository) ReplaceRange(ctx context.Context, from, to time.Time, prices []models.Price) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date >= ? AND date <= ?", from, to).Delete(&models.Price{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear price window")
		}
		for i := range prices {
			if err := tx.Create(&prices[i]).Error; err != nil {
				return errors.Wrap(err, "failed to insert price")
			}
		}
		return nil
	})
}

// PipelineFlowRepository provides access to overland flow rows
type PipelineFlowRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPipelineFlowRepository creates a new pipeline flow repository
func NewPipelineFlowRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PipelineFlowRepository {
	return &PipelineFlowRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts flows on their business key, refreshing tonnage on
// upstream corrections
func (r *PipelineFlowRepository) UpsertBatch(ctx context.Context, flows []models.PipelineFlow) error {
	for i := range flows {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "date"}, {Name: "commodity"}, {Name: "origin_iso2"}, {Name: "destination_iso2"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"tonnes"}),
		}).Create(&flows[i]).Error
		if err != nil {
			return errors.Wrap(err, "failed to upsert pipeline flow")
		}
	}
	return nil
}

// ListRange lists flows within a date range
func (r *PipelineFlowRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.PipelineFlow, error) {
	var flows []models.PipelineFlow
	err := r.readOnlyDB.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Find(&flows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pipeline flows")
	}
	return flows, nil
}

// MonthsWithData lists the months ("2006-01") that have at least one flow
func (r *PipelineFlowRepository) MonthsWithData(ctx context.Context) (map[string]bool, error) {
	var months []string
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.PipelineFlow{}).
		Distinct("to_char(date, 'YYYY-MM')").
		Pluck("to_char(date, 'YYYY-MM')", &months).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list overland months")
	}
	out := make(map[string]bool, len(months))
	for _, m := range months {
		out[m] = true
	}
	return out, nil
}

// ComputedTradeRepository provides access to the computed trade view
type ComputedTradeRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewComputedTradeRepository creates a new computed trade repository
func NewComputedTradeRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ComputedTradeRepository {
	return &ComputedTradeRepository{db: db, readOnlyDB: readOnlyDB}
}

// ReplaceMonth swaps one monthly partition in a single transaction. The
// swap aborts when a priceable row arrives without a price.
func (r *ComputedTradeRepository) ReplaceMonth(ctx context.Context, month string, rows []models.ComputedTrade) error {
	if err := trades.ValidatePriced(rows); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("month = ?", month).Delete(&models.ComputedTrade{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear computed trade partition")
		}
		for i := range rows {
			if rows[i].Month != month {
				return errors.Errorf("row %s does not belong to partition %s", rows[i].TradeID, month)
			}
			if err := tx.Create(&rows[i]).Error; err != nil {
				return errors.Wrap(err, "failed to insert computed trade")
			}
		}
		return nil
	})
}

// ListRange lists computed trades departing within a window
func (r *ComputedTradeRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.ComputedTrade, error) {
	var rows []models.ComputedTrade
	err := r.readOnlyDB.WithContext(ctx).
		Where("departure_date >= ? AND departure_date <= ?", from, to).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list computed trades")
	}
	return rows, nil
}

// CounterRepository provides access to the published counter
type CounterRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB, readOnlyDB *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db, readOnlyDB: readOnlyDB}
}

// Publish atomically replaces the series for one version
func (r *CounterRepository) Publish(ctx context.Context, version models.CounterVersion, rows []models.CounterRow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version = ?", version).Delete(&models.CounterRow{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear counter version")
		}
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return errors.Wrap(err, "failed to insert counter row")
			}
		}
		return nil
	})
}

// ListPublished lists the live series for one version
func (r *CounterRepository) ListPublished(ctx context.Context, version models.CounterVersion) ([]models.CounterRow, error) {
	var rows []models.CounterRow
	err := r.readOnlyDB.WithContext(ctx).
		Where("version = ?", version).
		Order("date asc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list published counter")
	}
	return rows, nil
}

// ProviderCallRepository logs completed upstream calls; it backs the
// call-economy window oracle
type ProviderCallRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewProviderCallRepository creates a new provider call repository
func NewProviderCallRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ProviderCallRepository {
	return &ProviderCallRepository{db: db, readOnlyDB: readOnlyDB}
}

// Record logs one completed call
func (r *ProviderCallRepository) Record(ctx context.Context, call *models.ProviderCall) error {
	return r.db.WithContext(ctx).Create(call).Error
}

// CoveredWindows returns the already-fetched windows per subject for one
// provider
func (r *ProviderCallRepository) CoveredWindows(ctx context.Context, provider string) (map[string][]voyage.Window, error) {
	var calls []models.ProviderCall
	err := r.readOnlyDB.WithContext(ctx).
		Where("provider = ?", provider).
		Find(&calls).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list provider calls")
	}
	out := make(map[string][]voyage.Window)
	for _, c := range calls {
		out[c.Subject] = append(out[c.Subject], voyage.Window{From: c.WindowFrom, To: c.WindowTo})
	}
	return out, nil
}

// CurrencyRateRepository provides access to daily exchange rates
type CurrencyRateRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewCurrencyRateRepository creates a new currency rate repository
func NewCurrencyRateRepository(db *gorm.DB, readOnlyDB *gorm.DB) *CurrencyRateRepository {
	return &CurrencyRateRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts rates, refreshing revised days
func (r *CurrencyRateRepository) UpsertBatch(ctx context.Context, rates []models.CurrencyRate) error {
	for i := range rates {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "currency"}},
			DoUpdates: clause.AssignmentColumns([]string{"per_eur"}),
		}).Create(&rates[i]).Error
		if err != nil {
			return errors.Wrap(err, "failed to upsert currency rate")
		}
	}
	return nil
}

// ListRange lists rates within a date range
func (r *CurrencyRateRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.CurrencyRate, error) {
	var rates []models.CurrencyRate
	err := r.readOnlyDB.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Find(&rates).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list currency rates")
	}
	return rates, nil
}

// KplerTradeRepository provides access to third-party trades
type KplerTradeRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewKplerTradeRepository creates a new third-party trade repository
func NewKplerTradeRepository(db *gorm.DB, readOnlyDB *gorm.DB) *KplerTradeRepository {
	return &KplerTradeRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts trades, absorbing upstream refreshes
func (r *KplerTradeRepository) UpsertBatch(ctx context.Context, rows []models.KplerTrade) error {
	for i := range rows {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&rows[i]).Error
		if err != nil {
			return errors.Wrap(err, "failed to upsert third-party trade")
		}
	}
	return nil
}

// ListRange lists third-party trades departing within a window
func (r *KplerTradeRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.KplerTrade, error) {
	var rows []models.KplerTrade
	err := r.readOnlyDB.WithContext(ctx).
		Where("departure_utc >= ? AND departure_utc <= ?", from, to).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list third-party trades")
	}
	return rows, nil
}

// ZoneRepository provides access to provider zones
type ZoneRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewZoneRepository creates a new zone repository
func NewZoneRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db, readOnlyDB: readOnlyDB}
}

// UpsertBatch inserts zones keyed on the provider id
func (r *ZoneRepository) UpsertBatch(ctx context.Context, zones []models.Zone) error {
	for i := range zones {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&zones[i]).Error
		if err != nil {
			return errors.Wrap(err, "failed to upsert zone")
		}
	}
	return nil
}

// GetByID gets a zone
func (r *ZoneRepository) GetByID(ctx context.Context, id string) (*models.Zone, error) {
	var zone models.Zone
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&zone).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get zone by ID")
	}
	return &zone, nil
}
