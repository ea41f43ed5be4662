package counter

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

func baseConfig() Config {
	return Config{
		Version:          models.CounterV2,
		AnchorDate:       d("2023-01-01"),
		CoalBanDate:      d("2023-01-05"),
		LNGPhaseOutDate:  d("2023-01-03"),
		LNGPhaseOutDays:  4,
		TransitNeighbor:  "TR",
		TransitCutoff:    d("2023-01-05"),
		SanityLowerRatio: 0.90,
		SanityUpperRatio: 1.30,
		SanityAbsEUR:     5e8,
	}
}

func point(date string, commodity models.Commodity, dest string, eur float64) Point {
	return Point{
		Date: d(date), Commodity: commodity, DestinationISO2: dest,
		Scenario: models.ScenarioDefault, ValueEUR: eur, Tonnes: eur / 500,
	}
}

func TestAssembleZeroFillsMissingDays(t *testing.T) {
	seaborne := []Point{
		point("2023-01-01", models.CommodityCrudeOil, "IN", 1000),
		point("2023-01-04", models.CommodityCrudeOil, "IN", 2000),
	}

	rows := Assemble(baseConfig(), seaborne, nil, nil, d("2023-01-04"))
	require.Len(t, rows, 4)
	require.Equal(t, 1000.0, rows[0].ValueEUR)
	require.Equal(t, 0.0, rows[1].ValueEUR)
	require.Equal(t, 0.0, rows[2].ValueEUR)
	require.Equal(t, 2000.0, rows[3].ValueEUR)
	require.Equal(t, "oil", rows[0].CommodityGroup)
	require.Equal(t, models.CounterV2, rows[0].Version)
}

func TestAssembleCoalBanZeroesEUOnly(t *testing.T) {
	seaborne := []Point{
		point("2023-01-06", models.CommodityCoal, "DE", 1000),
		point("2023-01-06", models.CommodityCoal, "TR", 1000),
	}

	rows := Assemble(baseConfig(), seaborne, nil, nil, d("2023-01-06"))
	byDest := make(map[string]float64)
	for _, r := range rows {
		if r.Date.Equal(d("2023-01-06")) {
			byDest[r.DestinationISO2] = r.ValueEUR
		}
	}
	require.Equal(t, 0.0, byDest["DE"])
	require.Equal(t, 1000.0, byDest["TR"])
}

func TestAssembleLNGPhaseOutIsLinear(t *testing.T) {
	overland := []Point{
		point("2023-01-03", models.CommodityPipelineLNG, "JP", 1000),
		point("2023-01-05", models.CommodityPipelineLNG, "JP", 1000),
		point("2023-01-08", models.CommodityPipelineLNG, "JP", 1000),
	}

	rows := Assemble(baseConfig(), nil, overland, nil, d("2023-01-08"))
	byDate := make(map[string]float64)
	for _, r := range rows {
		byDate[r.Date.Format("2006-01-02")] = r.ValueEUR
	}
	// Day 0 of the phase-out keeps full value, day 2 of 4 keeps half,
	// past the window everything is zero
	require.Equal(t, 1000.0, byDate["2023-01-03"])
	require.Equal(t, 500.0, byDate["2023-01-05"])
	require.Equal(t, 0.0, byDate["2023-01-08"])
}

func TestAssembleTransitNeighborGasZeroed(t *testing.T) {
	overland := []Point{
		point("2023-01-06", models.CommodityNaturalGas, "TR", 1000),
		point("2023-01-06", models.CommodityNaturalGas, "DE", 1000),
	}

	rows := Assemble(baseConfig(), nil, overland, nil, d("2023-01-06"))
	byDest := make(map[string]float64)
	for _, r := range rows {
		if r.Date.Equal(d("2023-01-06")) {
			byDest[r.DestinationISO2] = r.ValueEUR
		}
	}
	require.Equal(t, 0.0, byDest["TR"])
	require.Equal(t, 1000.0, byDest["DE"])
}

func TestAssembleV2PrefersThirdPartySeaborne(t *testing.T) {
	seaborne := []Point{point("2023-01-01", models.CommodityCrudeOil, "IN", 1000)}
	thirdParty := []Point{point("2023-01-01", models.CommodityCrudeOil, "IN", 1500)}

	rows := Assemble(baseConfig(), seaborne, nil, thirdParty, d("2023-01-01"))
	require.Len(t, rows, 1)
	require.Equal(t, 1500.0, rows[0].ValueEUR)
}

func TestAssembleV2KeepsSeaborneWhereFeedSilent(t *testing.T) {
	// The feed covers crude to IN on Jan 1 only; the in-house rows for the
	// uncovered day and the uncovered commodity both survive the merge
	seaborne := []Point{
		point("2023-01-01", models.CommodityCrudeOil, "IN", 1000),
		point("2023-01-02", models.CommodityCrudeOil, "IN", 2000),
		point("2023-01-01", models.CommodityCoal, "TR", 3000),
	}
	thirdParty := []Point{point("2023-01-01", models.CommodityCrudeOil, "IN", 1500)}

	rows := Assemble(baseConfig(), seaborne, nil, thirdParty, d("2023-01-02"))
	byKey := make(map[string]float64)
	for _, r := range rows {
		byKey[string(r.Commodity)+"/"+r.DestinationISO2+"/"+r.Date.Format("2006-01-02")] = r.ValueEUR
	}
	require.Equal(t, 1500.0, byKey["crude_oil/IN/2023-01-01"])
	require.Equal(t, 2000.0, byKey["crude_oil/IN/2023-01-02"])
	require.Equal(t, 3000.0, byKey["coal/TR/2023-01-01"])
}

func TestAssembleV1IgnoresThirdParty(t *testing.T) {
	cfg := baseConfig()
	cfg.Version = models.CounterV1

	seaborne := []Point{point("2023-01-01", models.CommodityCrudeOil, "IN", 1000)}
	thirdParty := []Point{point("2023-01-01", models.CommodityCrudeOil, "IN", 1500)}

	rows := Assemble(cfg, seaborne, nil, thirdParty, d("2023-01-01"))
	require.Len(t, rows, 1)
	require.Equal(t, 1000.0, rows[0].ValueEUR)
}

func counterRows(eur float64) []CounterLike {
	return []CounterLike{{
		CommodityGroup: "oil", DestinationRegion: "EU", DestinationISO2: "DE", ValueEUR: eur,
	}}
}

func TestSanityCheckPassesWithinRatio(t *testing.T) {
	cfg := baseConfig()
	cfg.SanityAbsEUR = 0
	require.NoError(t, SanityCheck(cfg, counterRows(1.2e9), counterRows(1.0e9)))
}

func TestSanityCheckFailsOnLargeJump(t *testing.T) {
	// +40% vs the live series on EU oil must abort publication
	cfg := baseConfig()
	cfg.SanityAbsEUR = 1e6

	err := SanityCheck(cfg, counterRows(1.4e9), counterRows(1.0e9))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSanityFailed)

	var report *SanityReport
	require.ErrorAs(t, err, &report)
	require.Len(t, report.FailedGroups, 1)
	require.Contains(t, report.FailedGroups[0], "oil/EU")
}

func TestSanityCheckAbsoluteToleranceAbsorbsSmallSeries(t *testing.T) {
	cfg := baseConfig()
	// A doubling is fine while the absolute move stays under the cushion
	require.NoError(t, SanityCheck(cfg, counterRows(4e8), counterRows(2e8)))
}

func TestSanityCheckEmptyLiveSeriesAlwaysPasses(t *testing.T) {
	require.NoError(t, SanityCheck(baseConfig(), counterRows(1e9), nil))
}

func TestSanityCheckPerDestinationFallback(t *testing.T) {
	cfg := baseConfig()
	cfg.SanityAbsEUR = 1e6
	// The bucket ratio fails only because a tiny member country appeared;
	// every pre-existing destination moved under 5%, so the fallback passes
	live := []CounterLike{
		{CommodityGroup: "oil", DestinationRegion: "EU", DestinationISO2: "DE", ValueEUR: 1e7},
	}
	fresh := []CounterLike{
		{CommodityGroup: "oil", DestinationRegion: "EU", DestinationISO2: "DE", ValueEUR: 1.03e7},
		{CommodityGroup: "oil", DestinationRegion: "EU", DestinationISO2: "NL", ValueEUR: 2e7},
	}
	require.NoError(t, SanityCheck(cfg, fresh, live))
}
