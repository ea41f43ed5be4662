package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func f64(v float64) *float64 { return &v }

func trade(date string, commodity models.Commodity, dest string, eur float64) models.ComputedTrade {
	return models.ComputedTrade{
		TradeID:         date + "/" + string(commodity) + "/" + dest,
		Scenario:        models.ScenarioDefault,
		DepartureDate:   d(date),
		OriginISO2:      "RU",
		DestinationISO2: dest,
		Commodity:       commodity,
		ValueEUR:        f64(eur),
		EURPerTonne:     f64(500),
		Tonnes:          eur / 500,
	}
}

var fixture = []models.ComputedTrade{
	trade("2023-01-01", models.CommodityCrudeOil, "IN", 1000000),
	trade("2023-01-01", models.CommodityCrudeOil, "CN", 2000000),
	trade("2023-01-02", models.CommodityLNG, "CN", 3000000),
	trade("2023-01-02", models.CommodityCoal, "TR", 500000),
}

func TestRunRejectsUnknownKey(t *testing.T) {
	_, err := Run(Query{AggregateBy: []string{"vessel_color"}}, fixture, nil)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestRunGroupsByCommodity(t *testing.T) {
	rows, err := Run(Query{AggregateBy: []string{KeyCommodity}, SortBy: "value_eur", SortDesc: true}, fixture, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "lng", rows[0].Keys[KeyCommodity])
	require.Equal(t, 3000000.0, rows[0].ValueEUR)
	require.Equal(t, "crude_oil", rows[1].Keys[KeyCommodity])
	require.Equal(t, 3000000.0, rows[1].ValueEUR)
}

func TestRunCountryKeyExpandsToRegionColumns(t *testing.T) {
	rows, err := Run(Query{AggregateBy: []string{KeyDestinationCountry}}, fixture, nil)
	require.NoError(t, err)
	for _, r := range rows {
		require.Contains(t, r.Keys, "destination_iso2")
		require.Contains(t, r.Keys, "destination_country")
		require.Contains(t, r.Keys, "destination_region")
	}
}

func TestRunFiltersByWindowAndDestination(t *testing.T) {
	from, to := d("2023-01-02"), d("2023-01-02")
	rows, err := Run(Query{
		DateFrom: &from, DateTo: &to,
		Destinations: []string{"CN"},
		AggregateBy:  []string{KeyCommodity},
	}, fixture, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "lng", rows[0].Keys[KeyCommodity])
}

func TestRunEmptyResultIsNotAnError(t *testing.T) {
	rows, err := Run(Query{Destinations: []string{"ZZ"}, AggregateBy: []string{KeyCommodity}}, fixture, nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

// Summing across destinations, across commodity groups, and globally must
// agree within float tolerance
func TestRoundTripAggregationTotalsAgree(t *testing.T) {
	byDest, err := Run(Query{AggregateBy: []string{KeyDestinationCountry}}, fixture, nil)
	require.NoError(t, err)
	byGroup, err := Run(Query{AggregateBy: []string{KeyCommodityGroup}}, fixture, nil)
	require.NoError(t, err)
	global, err := Run(Query{}, fixture, nil)
	require.NoError(t, err)
	require.Len(t, global, 1)

	sum := func(rows []Row) float64 {
		var s float64
		for _, r := range rows {
			s += r.ValueEUR
		}
		return s
	}
	require.InDelta(t, global[0].ValueEUR, sum(byDest), 1e-6)
	require.InDelta(t, global[0].ValueEUR, sum(byGroup), 1e-6)
}

// The USD/EUR ratio of the totals must equal the flat daily rate
func TestCurrencyLinearity(t *testing.T) {
	rates := []models.CurrencyRate{
		{Date: d("2023-01-01"), Currency: "USD", PerEUR: 1.08},
		{Date: d("2023-01-02"), Currency: "USD", PerEUR: 1.08},
	}
	rows, err := Run(Query{Currencies: []string{"EUR", "USD"}}, fixture, rates)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.InEpsilon(t, 1.08, rows[0].Currencies["USD"]/rows[0].Currencies["EUR"], 0.01)
}

func TestRollingMeanSmoothsDailySeries(t *testing.T) {
	trs := []models.ComputedTrade{
		trade("2023-01-01", models.CommodityCrudeOil, "IN", 1000),
		trade("2023-01-02", models.CommodityCrudeOil, "IN", 3000),
	}
	rows, err := Run(Query{
		AggregateBy: []string{KeyDepartureDate},
		RollingDays: 2,
		SortBy:      KeyDepartureDate,
	}, trs, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1000.0, rows[0].ValueEUR)
	require.Equal(t, 2000.0, rows[1].ValueEUR)
}

func TestLimitByGroupKeepsTopRowsPerDay(t *testing.T) {
	rows, err := Run(Query{
		AggregateBy:  []string{KeyDepartureDate, KeyDestinationCountry},
		SortBy:       "value_eur",
		SortDesc:     true,
		LimitByGroup: 1,
	}, fixture, nil)
	require.NoError(t, err)

	perDay := make(map[string]int)
	for _, r := range rows {
		perDay[r.Keys[KeyDepartureDate]]++
	}
	require.Equal(t, 1, perDay["2023-01-01"])
	require.Equal(t, 1, perDay["2023-01-02"])
}
