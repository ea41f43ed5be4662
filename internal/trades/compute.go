// Package trades materializes the computed trade view: the frozen join of a
// trade with its vessels, resolved parties, step zones, and price.
package trades

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/fossiltrack/internal/countries"
	"example.com/fossiltrack/internal/models"
)

// VesselInfo is the per-vessel slice of the join, parties already resolved
// as of the trade's departure
type VesselInfo struct {
	IMO         string
	Type        string
	CapacityDWT float64
	YearBuilt   *int
	InsurerName string
	InsurerISO2 string
	OwnerName   string
	OwnerISO2   string
	ManagerISO2 string
	FlagISO2    string
}

// StepZone is an STS transshipment location on the trade's path
type StepZone struct {
	ID     string
	Name   string
	ISO2   string
	Region string
}

// Identity is the trade's natural key
type Identity struct {
	TradeID   string
	FlowID    string
	ProductID string
}

// Input carries everything Compute freezes into one row
type Input struct {
	Identity          Identity
	ShipmentID        *uuid.UUID
	Status            models.ShipmentStatus
	DepartureDate     time.Time
	ArrivalDate       *time.Time
	DeparturePortID   *string
	DestinationPortID *string
	OriginISO2        string
	DestinationISO2   string
	Commodity         models.Commodity
	PricingCommodity  models.Commodity
	Tonnes            float64
	EURPerTonne       *float64
	Vessels           []VesselInfo
	StepZones         []StepZone
}

// Compute freezes one (trade, scenario) row
func Compute(in Input, scenario models.PricingScenario, asOf time.Time) models.ComputedTrade {
	row := models.ComputedTrade{
		ID:                uuid.New(),
		TradeID:           in.Identity.TradeID,
		FlowID:            in.Identity.FlowID,
		ProductID:         in.Identity.ProductID,
		Scenario:          scenario,
		ShipmentID:        in.ShipmentID,
		Month:             in.DepartureDate.Format("2006-01"),
		Status:            in.Status,
		DepartureDate:     in.DepartureDate,
		ArrivalDate:       in.ArrivalDate,
		DeparturePortID:   in.DeparturePortID,
		DestinationPortID: in.DestinationPortID,
		OriginISO2:        in.OriginISO2,
		DestinationISO2:   in.DestinationISO2,
		DestinationRegion: countries.Region(in.DestinationISO2),
		PricingCommodity:  in.PricingCommodity,
		Commodity:         in.Commodity,
		EURPerTonne:       in.EURPerTonne,
		Tonnes:            in.Tonnes,
		SanctionCoverage:  Coverage(in.Vessels),
	}

	if in.EURPerTonne != nil {
		v := *in.EURPerTonne * in.Tonnes
		row.ValueEUR = &v
	}

	for _, v := range in.Vessels {
		row.InsurerNames = append(row.InsurerNames, v.InsurerName)
		row.InsurerISO2s = append(row.InsurerISO2s, v.InsurerISO2)
		row.OwnerNames = append(row.OwnerNames, v.OwnerName)
		row.OwnerISO2s = append(row.OwnerISO2s, v.OwnerISO2)
		row.ManagerISO2s = append(row.ManagerISO2s, v.ManagerISO2)
		row.FlagISO2s = append(row.FlagISO2s, v.FlagISO2)

		if v.CapacityDWT > row.LargestVesselCap {
			row.LargestVesselCap = v.CapacityDWT
			row.LargestVesselType = v.Type
		}
	}
	row.AvgVesselAge = averageAge(in.Vessels, asOf)

	for _, z := range in.StepZones {
		row.StepZoneIDs = append(row.StepZoneIDs, z.ID)
		row.StepZoneNames = append(row.StepZoneNames, z.Name)
		row.StepZoneISO2s = append(row.StepZoneISO2s, z.ISO2)
		row.StepZoneRegions = append(row.StepZoneRegions, z.Region)
	}

	return row
}

// Coverage tags the trade by the carrying fleet's exposure to the sanction
// coalition, most exposed bucket first
func Coverage(vessels []VesselInfo) models.SanctionCoverage {
	anyOwnerKnown := false
	insuredNorway := false
	for _, v := range vessels {
		if countries.IsPriceCapCoalition(v.OwnerISO2) || countries.IsPriceCapCoalition(v.InsurerISO2) {
			return models.CoverageEUG7
		}
		if v.InsurerISO2 == "NO" {
			insuredNorway = true
		}
		if v.OwnerISO2 != "" {
			anyOwnerKnown = true
		}
	}
	if insuredNorway {
		return models.CoverageNorway
	}
	if anyOwnerKnown {
		return models.CoverageOthers
	}
	return models.CoverageUnknown
}

func averageAge(vessels []VesselInfo, asOf time.Time) *float64 {
	var sum float64
	var n int
	for _, v := range vessels {
		if v.YearBuilt == nil {
			continue
		}
		sum += float64(asOf.Year() - *v.YearBuilt)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// unpriceableCommodities may legitimately carry a null price
var unpriceableCommodities = map[models.Commodity]bool{
	models.CommodityGeneralCargo: true,
	models.CommodityUnknown:      true,
}

// ValidatePriced enforces that every priceable row in a partition carries a
// price before the partition swap commits
func ValidatePriced(rows []models.ComputedTrade) error {
	for _, r := range rows {
		if unpriceableCommodities[r.PricingCommodity] {
			continue
		}
		if r.EURPerTonne == nil {
			return errors.Errorf("computed trade %s has no price for priceable commodity %s",
				tradeKey(r), r.PricingCommodity)
		}
	}
	return nil
}

func tradeKey(r models.ComputedTrade) string {
	return fmt.Sprintf("%s/%s/%s/%s", r.TradeID, r.FlowID, r.ProductID, r.Scenario)
}
