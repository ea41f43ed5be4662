// Package counter unions seaborne, overland, and third-party trade values
// into the published daily counter series, applies the corrective rules,
// and gates publication behind a sanity comparison with the live series.
package counter

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/fossiltrack/internal/countries"
	"example.com/fossiltrack/internal/models"
)

// Config controls assembly and the sanity gate
type Config struct {
	Version         models.CounterVersion
	AnchorDate      time.Time
	CoalBanDate     time.Time
	LNGPhaseOutDate time.Time
	LNGPhaseOutDays int
	TransitNeighbor string
	TransitCutoff   time.Time

	SanityLowerRatio float64
	SanityUpperRatio float64
	SanityAbsEUR     float64
	Force            bool
}

// Point is one daily input value from any of the three sources
type Point struct {
	Date            time.Time
	Commodity       models.Commodity
	DestinationISO2 string
	Scenario        models.PricingScenario
	ValueEUR        float64
	Tonnes          float64
}

// Assemble builds the counter series for one version up to dateTo. Inputs
// are unioned, reindexed to a contiguous daily range per (commodity,
// destination, scenario) with zeros for missing days, and run through the
// corrective rules. The v1 variant uses the in-house seaborne
// reconstruction; v2 sources seaborne values from the third-party trade
// feed wherever it covers a (commodity, destination, scenario, day) and
// keeps the in-house rows for the rest.
func Assemble(cfg Config, seaborne, overland, thirdParty []Point, dateTo time.Time) []models.CounterRow {
	inputs := mergeSeaborne(cfg.Version, seaborne, thirdParty)
	inputs = append(inputs, overland...)

	type seriesKey struct {
		commodity models.Commodity
		dest      string
		scenario  models.PricingScenario
	}
	series := make(map[seriesKey]map[time.Time]Point)
	for _, p := range inputs {
		k := seriesKey{commodity: p.Commodity, dest: p.DestinationISO2, scenario: p.Scenario}
		if series[k] == nil {
			series[k] = make(map[time.Time]Point)
		}
		dayKey := day(p.Date)
		acc := series[k][dayKey]
		acc.ValueEUR += p.ValueEUR
		acc.Tonnes += p.Tonnes
		series[k][dayKey] = acc
	}

	var rows []models.CounterRow
	for k, days := range series {
		from := cfg.AnchorDate
		if from.IsZero() {
			for d := range days {
				if from.IsZero() || d.Before(from) {
					from = d
				}
			}
		}
		for d := day(from); !d.After(day(dateTo)); d = d.AddDate(0, 0, 1) {
			p := days[d]
			eur, tonnes := correct(cfg, k.commodity, k.dest, d, p.ValueEUR, p.Tonnes)
			rows = append(rows, models.CounterRow{
				ID:                uuid.New(),
				Date:              d,
				Commodity:         k.commodity,
				DestinationISO2:   k.dest,
				Scenario:          k.scenario,
				Version:           cfg.Version,
				CommodityGroup:    k.commodity.Group(),
				DestinationRegion: countries.Region(k.dest),
				ValueEUR:          eur,
				ValueTonnes:       tonnes,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Commodity != b.Commodity {
			return a.Commodity < b.Commodity
		}
		if a.DestinationISO2 != b.DestinationISO2 {
			return a.DestinationISO2 < b.DestinationISO2
		}
		return a.Scenario < b.Scenario
	})
	return rows
}

type pointKey struct {
	day       time.Time
	commodity models.Commodity
	dest      string
	scenario  models.PricingScenario
}

// mergeSeaborne selects the seaborne input for one counter version. v2
// prefers the third-party feed per (commodity, destination, scenario, day)
// so a partial feed never blanks the days it does not cover.
func mergeSeaborne(version models.CounterVersion, seaborne, thirdParty []Point) []Point {
	if version != models.CounterV2 {
		return append([]Point(nil), seaborne...)
	}
	covered := make(map[pointKey]bool, len(thirdParty))
	for _, p := range thirdParty {
		covered[pointKey{day(p.Date), p.Commodity, p.DestinationISO2, p.Scenario}] = true
	}
	merged := append([]Point(nil), thirdParty...)
	for _, p := range seaborne {
		if !covered[pointKey{day(p.Date), p.Commodity, p.DestinationISO2, p.Scenario}] {
			merged = append(merged, p)
		}
	}
	return merged
}

// correct applies the date-gated corrective rules to one daily value
func correct(cfg Config, commodity models.Commodity, dest string, d time.Time, eur, tonnes float64) (float64, float64) {
	// Pipeline LNG winds down linearly after the cutover
	if commodity == models.CommodityPipelineLNG && !cfg.LNGPhaseOutDate.IsZero() && !d.Before(cfg.LNGPhaseOutDate) {
		if cfg.LNGPhaseOutDays <= 0 {
			return 0, 0
		}
		elapsed := int(d.Sub(cfg.LNGPhaseOutDate).Hours() / 24)
		factor := 1 - float64(elapsed)/float64(cfg.LNGPhaseOutDays)
		if factor < 0 {
			factor = 0
		}
		return eur * factor, tonnes * factor
	}

	// EU coal imports are banned outright from the ban date
	if commodity.Group() == "coal" && countries.IsEU(dest) && !cfg.CoalBanDate.IsZero() && !d.Before(cfg.CoalBanDate) {
		return 0, 0
	}

	// Pipeline gas to the transit neighbor is onward transit, not an import
	if commodity == models.CommodityNaturalGas && dest == cfg.TransitNeighbor && !cfg.TransitCutoff.IsZero() && !d.Before(cfg.TransitCutoff) {
		return 0, 0
	}

	return eur, tonnes
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
