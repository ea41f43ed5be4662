package parties

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/internal/models"
)

// companyNameThreshold is the similarity ratio above which a conflicting
// registry row is treated as the same legal entity
const companyNameThreshold = 0.9

// CompanyStore is the persistence surface the ingester needs for companies
type CompanyStore interface {
	GetByProviderID(ctx context.Context, providerID string) (*models.Company, error)
	GetByName(ctx context.Context, normalizedName string) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
}

// RoleStore is the persistence surface for ship-company role histories
type RoleStore interface {
	History(ctx context.Context, shipIMO string, role models.CompanyRole) ([]models.ShipCompany, error)
	Insert(ctx context.Context, rec *models.ShipCompany) error
	Update(ctx context.Context, rec *models.ShipCompany) error
}

// ErrDuplicateKey is returned by stores on a unique-constraint violation
var ErrDuplicateKey = errors.New("duplicate key violation")

// Ingester turns scraped registry rows into company and role records
type Ingester struct {
	companies CompanyStore
	roles     RoleStore
	imputer   *Imputer
}

// NewIngester creates a registry ingester
func NewIngester(companies CompanyStore, roles RoleStore, imputer *Imputer) *Ingester {
	return &Ingester{companies: companies, roles: roles, imputer: imputer}
}

// MatchOrCreateCompany resolves a scraped registry row to a company record.
// An ambiguous conflict is logged and left unresolved (nil) rather than
// guessed.
func (g *Ingester) MatchOrCreateCompany(ctx context.Context, providerID, name string, addresses []string) (*models.Company, error) {
	normalized := NormalizeName(name)

	// Exact match on provider id, confirmed by name
	if providerID != "" {
		existing, err := g.companies.GetByProviderID(ctx, providerID)
		if err == nil && NormalizeName(existing.Name) == normalized {
			return existing, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "failed to look up company by provider id")
		}
	}

	// Exact match on normalized name
	existing, err := g.companies.GetByName(ctx, normalized)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "failed to look up company by name")
	}

	company := &models.Company{
		ID:        uuid.New(),
		Name:      name,
		Addresses: models.StringArray(addresses),
	}
	if providerID != "" {
		company.ProviderID = &providerID
	}
	if iso2 := g.imputer.Country(providerID, name, addresses); iso2 != "" {
		company.CountryISO2 = &iso2
	}

	err = g.companies.Create(ctx, company)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, ErrDuplicateKey) {
		return nil, errors.Wrap(err, "failed to create company")
	}

	// Another row already claims this provider id. Accept it when the names
	// are close enough, refuse the merge otherwise.
	conflicting, lookupErr := g.companies.GetByProviderID(ctx, providerID)
	if lookupErr != nil {
		return nil, errors.Wrap(lookupErr, "failed to resolve company conflict")
	}
	if SimilarityRatio(conflicting.Name, name) >= companyNameThreshold {
		if !conflicting.AltNames.Contains(name) && NormalizeName(conflicting.Name) != normalized {
			conflicting.AltNames = append(conflicting.AltNames, name)
			if err := g.companies.Update(ctx, conflicting); err != nil {
				return nil, errors.Wrap(err, "failed to record company alternative name")
			}
		}
		return conflicting, nil
	}

	log.Warn().
		Str("provider_id", providerID).
		Str("name", name).
		Str("conflicting_name", conflicting.Name).
		Msg("ambiguous company match, leaving record unresolved")
	return nil, ErrAmbiguousMatch
}

// RecordRole stores a scraped role observation, honoring the retroactive
// first-insurer rule and coalescing consecutive unknown observations.
// companyID is nil for an "unknown" observation.
func (g *Ingester) RecordRole(ctx context.Context, shipIMO string, role models.CompanyRole, companyID *uuid.UUID, dateFrom *time.Time, now time.Time) error {
	history, err := g.roles.History(ctx, shipIMO, role)
	if err != nil {
		return errors.Wrap(err, "failed to load role history")
	}
	SortHistory(history)

	// Consecutive unknowns collapse into the most recent one
	if companyID == nil {
		if len(history) > 0 {
			newest := &history[len(history)-1]
			if newest.CompanyID == nil {
				newest.FailureCount++
				newest.UpdatedOn = now
				return errors.Wrap(g.roles.Update(ctx, newest), "failed to update unknown role record")
			}
		}
		rec := &models.ShipCompany{
			ID:           uuid.New(),
			ShipIMO:      shipIMO,
			Role:         role,
			DateFrom:     dateFrom,
			UpdatedOn:    now,
			FailureCount: 1,
		}
		return errors.Wrap(g.roles.Insert(ctx, rec), "failed to insert unknown role record")
	}

	// Re-confirmation of the newest record only touches UpdatedOn
	if len(history) > 0 {
		newest := &history[len(history)-1]
		if newest.CompanyID != nil && *newest.CompanyID == *companyID && sameDate(newest.DateFrom, dateFrom) {
			newest.UpdatedOn = now
			return errors.Wrap(g.roles.Update(ctx, newest), "failed to confirm role record")
		}
	}

	// First ever insurer: also write a retroactive record with a null
	// DateFrom so voyages predating the first observation still price.
	if role == models.RoleInsurer && len(history) == 0 && dateFrom != nil {
		retro := &models.ShipCompany{
			ID:        uuid.New(),
			ShipIMO:   shipIMO,
			Role:      role,
			CompanyID: companyID,
			UpdatedOn: now,
		}
		if err := g.roles.Insert(ctx, retro); err != nil {
			return errors.Wrap(err, "failed to insert retroactive insurer record")
		}
	}

	rec := &models.ShipCompany{
		ID:        uuid.New(),
		ShipIMO:   shipIMO,
		Role:      role,
		CompanyID: companyID,
		DateFrom:  dateFrom,
		UpdatedOn: now,
	}
	return errors.Wrap(g.roles.Insert(ctx, rec), "failed to insert role record")
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
