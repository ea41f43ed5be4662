package repositories

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/parties"
)

// CompanyRepository provides access to company data. It satisfies
// parties.CompanyStore.
type CompanyRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *gorm.DB, readOnlyDB *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db, readOnlyDB: readOnlyDB}
}

// GetByProviderID gets a company by its registry provider id
func (r *CompanyRepository) GetByProviderID(ctx context.Context, providerID string) (*models.Company, error) {
	var company models.Company
	err := r.readOnlyDB.WithContext(ctx).Where("provider_id = ?", providerID).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, parties.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get company by provider id")
	}
	return &company, nil
}

// GetByName gets a company whose normalized name matches
func (r *CompanyRepository) GetByName(ctx context.Context, normalizedName string) (*models.Company, error) {
	var company models.Company
	err := r.readOnlyDB.WithContext(ctx).
		Where("upper(regexp_replace(name, '[^a-zA-Z0-9 ]', '', 'g')) = ?", normalizedName).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, parties.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get company by name")
	}
	return &company, nil
}

// Create inserts a company, translating unique-constraint violations so the
// ingester can re-fetch and merge
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	err := r.db.WithContext(ctx).Create(company).Error
	if err != nil && isDuplicateKey(err) {
		return parties.ErrDuplicateKey
	}
	return err
}

// Update saves a company
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}

// ShipCompanyRepository provides access to ship-company role histories. It
// satisfies parties.RoleStore.
type ShipCompanyRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewShipCompanyRepository creates a new ship-company repository
func NewShipCompanyRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ShipCompanyRepository {
	return &ShipCompanyRepository{db: db, readOnlyDB: readOnlyDB}
}

// History lists a ship's records for one role, oldest first with the
// retroactive null date_from row leading
func (r *ShipCompanyRepository) History(ctx context.Context, shipIMO string, role models.CompanyRole) ([]models.ShipCompany, error) {
	var records []models.ShipCompany
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Company").
		Where("ship_imo = ? AND role = ?", shipIMO, role).
		Order("date_from asc nulls first").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ship company history")
	}
	return records, nil
}

// Insert adds a role record
func (r *ShipCompanyRepository) Insert(ctx context.Context, rec *models.ShipCompany) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Update saves a role record
func (r *ShipCompanyRepository) Update(ctx context.Context, rec *models.ShipCompany) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

// InsurerChains loads every insurer history keyed by ship, for the
// integrity suite
func (r *ShipCompanyRepository) InsurerChains(ctx context.Context) (map[string][]models.ShipCompany, error) {
	var records []models.ShipCompany
	err := r.readOnlyDB.WithContext(ctx).
		Where("role = ?", models.RoleInsurer).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list insurer chains")
	}
	chains := make(map[string][]models.ShipCompany)
	for _, rec := range records {
		chains[rec.ShipIMO] = append(chains[rec.ShipIMO], rec)
	}
	return chains, nil
}

// ShipFlagRepository provides access to ship flag histories
type ShipFlagRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewShipFlagRepository creates a new ship flag repository
func NewShipFlagRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ShipFlagRepository {
	return &ShipFlagRepository{db: db, readOnlyDB: readOnlyDB}
}

// History lists a ship's flag records
func (r *ShipFlagRepository) History(ctx context.Context, shipIMO string) ([]models.ShipFlag, error) {
	var records []models.ShipFlag
	err := r.readOnlyDB.WithContext(ctx).
		Where("ship_imo = ?", shipIMO).
		Order("date_from asc nulls first").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ship flag history")
	}
	return records, nil
}

// Insert adds a flag record
func (r *ShipFlagRepository) Insert(ctx context.Context, rec *models.ShipFlag) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Postgres unique_violation surfaces as SQLSTATE 23505
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
