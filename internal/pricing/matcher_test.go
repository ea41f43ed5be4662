package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMatchSpecificityBeatsGeneric(t *testing.T) {
	prices := []models.Price{
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioPriceCap, EURPerTonne: 60},
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioPriceCap, EURPerTonne: 45,
			DestinationISO2s: models.StringArray{"IN"}, InsurerISO2s: models.StringArray{"GB"}},
	}

	m := NewMatcher("RU")

	// Shipment to IN with GB insurer resolves to the targeted 45 EUR/t row
	got := m.Match(prices, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "RU",
		DestinationISO2:  "IN",
		InsurerISO2:      "GB",
	}, models.ScenarioPriceCap)
	require.NotNil(t, got)
	require.Equal(t, 45.0, got.EURPerTonne)

	// Same commodity to IT with GB insurer only matches the generic row
	got = m.Match(prices, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "RU",
		DestinationISO2:  "IT",
		InsurerISO2:      "GB",
	}, models.ScenarioPriceCap)
	require.NotNil(t, got)
	require.Equal(t, 60.0, got.EURPerTonne)
}

func TestMatchTieBreaksOnLowestPrice(t *testing.T) {
	prices := []models.Price{
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioPriceCap, EURPerTonne: 58,
			DestinationISO2s: models.StringArray{"CN", "IN"}},
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioPriceCap, EURPerTonne: 52,
			DestinationISO2s: models.StringArray{"IN"}},
	}

	m := NewMatcher("RU")
	got := m.Match(prices, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "RU",
		DestinationISO2:  "IN",
	}, models.ScenarioPriceCap)
	require.NotNil(t, got)
	require.Equal(t, 52.0, got.EURPerTonne)
}

func TestMatchDimensionOrder(t *testing.T) {
	prices := []models.Price{
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioPriceCap, EURPerTonne: 40,
			InsurerISO2s: models.StringArray{"GB"}, OwnerISO2s: models.StringArray{"GR"}},
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioPriceCap, EURPerTonne: 70,
			DestinationISO2s: models.StringArray{"IN"}},
	}

	// A destination-targeted row beats insurer+owner targeting even at a
	// higher price
	m := NewMatcher("RU")
	got := m.Match(prices, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "RU",
		DestinationISO2:  "IN",
		InsurerISO2:      "GB",
		OwnerISO2:        "GR",
	}, models.ScenarioPriceCap)
	require.NotNil(t, got)
	require.Equal(t, 70.0, got.EURPerTonne)
}

func TestMatchNonSanctionedOriginOnlyGeneric(t *testing.T) {
	prices := []models.Price{
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioDefault, EURPerTonne: 80},
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioDefault, EURPerTonne: 45,
			DestinationISO2s: models.StringArray{"IN"}},
	}

	m := NewMatcher("RU")
	got := m.Match(prices, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "KZ",
		DestinationISO2:  "IN",
	}, models.ScenarioDefault)
	require.NotNil(t, got)
	require.Equal(t, 80.0, got.EURPerTonne)
}

func TestMatchSkipsReservedPortTargeting(t *testing.T) {
	prices := []models.Price{
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioDefault, EURPerTonne: 30,
			DeparturePortIDs: models.StringArray{"P1"}},
		{Commodity: models.CommodityCrudeOil, Date: day("2022-12-15"), Scenario: models.ScenarioDefault, EURPerTonne: 80},
	}

	m := NewMatcher("RU")
	got := m.Match(prices, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "RU",
		DestinationISO2:  "IN",
	}, models.ScenarioDefault)
	require.NotNil(t, got)
	require.Equal(t, 80.0, got.EURPerTonne)
}

func TestMatchNoRow(t *testing.T) {
	m := NewMatcher("RU")
	got := m.Match(nil, Candidate{
		PricingCommodity: models.CommodityCrudeOil,
		Date:             day("2022-12-15"),
		OriginISO2:       "RU",
	}, models.ScenarioDefault)
	require.Nil(t, got)
}

func TestPricingCommodityESPOOverride(t *testing.T) {
	// Eastern departure ports resolve to ESPO, western to Urals
	got := PricingCommodity(models.CommodityCrudeOil, "RU", "Kozmino", "", "RU")
	require.Equal(t, models.CommodityCrudeOilESPO, got)

	got = PricingCommodity(models.CommodityCrudeOil, "RU", "Nakhodka Anchorage", "", "RU")
	require.Equal(t, models.CommodityCrudeOilESPO, got)

	got = PricingCommodity(models.CommodityCrudeOil, "RU", "Primorsk", "", "RU")
	require.Equal(t, models.CommodityCrudeOilUrals, got)
}

func TestPricingCommodityExcludesNonSanctionedGrades(t *testing.T) {
	got := PricingCommodity(models.CommodityCrudeOil, "RU", "Novorossiysk", "KEBCO", "RU")
	require.Equal(t, models.CommodityCrudeOil, got)

	got = PricingCommodity(models.CommodityCrudeOil, "RU", "Novorossiysk", "CPC", "RU")
	require.Equal(t, models.CommodityCrudeOil, got)
}

func TestPricingCommodityOtherOriginsUntouched(t *testing.T) {
	got := PricingCommodity(models.CommodityCrudeOil, "KZ", "Kozmino", "", "RU")
	require.Equal(t, models.CommodityCrudeOil, got)

	got = PricingCommodity(models.CommodityLNG, "RU", "Prigorodnoye", "", "RU")
	require.Equal(t, models.CommodityLNG, got)
}
