package trades

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

func intp(v int) *int        { return &v }
func f64(v float64) *float64 { return &v }

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func baseInput() Input {
	return Input{
		Identity:         Identity{TradeID: "t-1", FlowID: "f-1", ProductID: "p-1"},
		Status:           models.ShipmentCompleted,
		DepartureDate:    d("2023-03-15"),
		OriginISO2:       "RU",
		DestinationISO2:  "IN",
		Commodity:        models.CommodityCrudeOil,
		PricingCommodity: models.CommodityCrudeOilUrals,
		Tonnes:           100000,
		EURPerTonne:      f64(45),
		Vessels: []VesselInfo{
			{IMO: "9000001", Type: "crude_oil_tanker", CapacityDWT: 110000, YearBuilt: intp(2008),
				InsurerName: "Gard", InsurerISO2: "NO", OwnerName: "Alpha Shipping", OwnerISO2: "GR"},
			{IMO: "9000002", Type: "shuttle_tanker", CapacityDWT: 80000, YearBuilt: intp(2012),
				InsurerName: "Unknown", OwnerISO2: "AE"},
		},
		StepZones: []StepZone{{ID: "z-1", Name: "Laconian Gulf", ISO2: "GR", Region: "EU"}},
	}
}

func TestComputeFreezesJoin(t *testing.T) {
	row := Compute(baseInput(), models.ScenarioDefault, d("2023-12-31"))

	require.Equal(t, "2023-03", row.Month)
	require.Equal(t, "t-1", row.TradeID)
	require.NotNil(t, row.ValueEUR)
	require.Equal(t, 4500000.0, *row.ValueEUR)
	require.Equal(t, models.StringArray{"NO", ""}, row.InsurerISO2s)
	require.Equal(t, models.StringArray{"GR", "AE"}, row.OwnerISO2s)
	require.Equal(t, "crude_oil_tanker", row.LargestVesselType)
	require.Equal(t, 110000.0, row.LargestVesselCap)
	require.NotNil(t, row.AvgVesselAge)
	require.Equal(t, 13.0, *row.AvgVesselAge)
	require.Equal(t, models.StringArray{"z-1"}, row.StepZoneIDs)
	require.Equal(t, models.StringArray{"EU"}, row.StepZoneRegions)
}

func TestComputeNilPriceLeavesValueNil(t *testing.T) {
	in := baseInput()
	in.EURPerTonne = nil
	row := Compute(in, models.ScenarioDefault, d("2023-12-31"))
	require.Nil(t, row.ValueEUR)
}

func TestCoverageEUG7WinsOverNorway(t *testing.T) {
	c := Coverage([]VesselInfo{
		{InsurerISO2: "NO"},
		{OwnerISO2: "DE"},
	})
	require.Equal(t, models.CoverageEUG7, c)
}

func TestCoverageNorwayInsurer(t *testing.T) {
	c := Coverage([]VesselInfo{{InsurerISO2: "NO", OwnerISO2: "AE"}})
	require.Equal(t, models.CoverageNorway, c)
}

func TestCoverageOthersWhenOwnerKnown(t *testing.T) {
	c := Coverage([]VesselInfo{{OwnerISO2: "AE"}})
	require.Equal(t, models.CoverageOthers, c)
}

func TestCoverageUnknownWhenNothingResolved(t *testing.T) {
	c := Coverage([]VesselInfo{{}})
	require.Equal(t, models.CoverageUnknown, c)
}

func TestValidatePricedRejectsNullPrice(t *testing.T) {
	rows := []models.ComputedTrade{
		{TradeID: "t-1", PricingCommodity: models.CommodityCrudeOil, EURPerTonne: nil},
	}
	require.Error(t, ValidatePriced(rows))
}

func TestValidatePricedIgnoresUnpriceable(t *testing.T) {
	rows := []models.ComputedTrade{
		{TradeID: "t-1", PricingCommodity: models.CommodityGeneralCargo, EURPerTonne: nil},
		{TradeID: "t-2", PricingCommodity: models.CommodityCrudeOil, EURPerTonne: f64(45)},
	}
	require.NoError(t, ValidatePriced(rows))
}
