// Package flows assembles daily overland export volumes from pipeline
// operator readings and values them in EUR.
package flows

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/pricing"
)

// mwhPerTonneNaturalGas converts operator energy readings to mass using the
// gross calorific value of pipeline gas
const mwhPerTonneNaturalGas = 13.3

// Reading is one raw physical-flow observation from a pipeline operator
type Reading struct {
	OperatorKey     string
	PointKey        string
	DirectionKey    string
	Date            time.Time
	OriginISO2      string
	DestinationISO2 string
	Commodity       models.Commodity
	Tonnes          *float64
	MWh             *float64
	Confirmed       bool
	PipeInPipe      bool
}

// tonnes normalizes the reading to mass
func (r Reading) tonnes() float64 {
	if r.Tonnes != nil {
		return *r.Tonnes
	}
	if r.MWh != nil {
		return *r.MWh / mwhPerTonneNaturalGas
	}
	return 0
}

// Aggregate collapses raw readings into one tonne value per (day, origin,
// destination, commodity). Pipe-in-pipe duplicates are dropped outright.
// When an interconnection point reports from both sides, the confirmed
// reading wins over the provisional one; among readings of equal standing
// the latest-keyed operator wins, so re-runs are deterministic.
func Aggregate(readings []Reading) []models.PipelineFlow {
	type pointKey struct {
		point     string
		direction string
		day       time.Time
	}
	best := make(map[pointKey]Reading)

	for _, r := range readings {
		if r.PipeInPipe {
			continue
		}
		k := pointKey{point: r.PointKey, direction: r.DirectionKey, day: day(r.Date)}
		cur, ok := best[k]
		if !ok {
			best[k] = r
			continue
		}
		switch {
		case r.Confirmed && !cur.Confirmed:
			best[k] = r
		case r.Confirmed == cur.Confirmed && r.OperatorKey > cur.OperatorKey:
			best[k] = r
		}
	}

	type flowKey struct {
		day       time.Time
		commodity models.Commodity
		origin    string
		dest      string
	}
	sums := make(map[flowKey]float64)
	for _, r := range best {
		k := flowKey{day: day(r.Date), commodity: r.Commodity, origin: r.OriginISO2, dest: r.DestinationISO2}
		sums[k] += r.tonnes()
	}

	flows := make([]models.PipelineFlow, 0, len(sums))
	for k, tonnes := range sums {
		flows = append(flows, models.PipelineFlow{
			ID:              uuid.New(),
			Date:            k.day,
			Commodity:       k.commodity,
			OriginISO2:      k.origin,
			DestinationISO2: k.dest,
			Tonnes:          tonnes,
		})
	}
	sort.Slice(flows, func(i, j int) bool {
		a, b := flows[i], flows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Commodity != b.Commodity {
			return a.Commodity < b.Commodity
		}
		if a.OriginISO2 != b.OriginISO2 {
			return a.OriginISO2 < b.OriginISO2
		}
		return a.DestinationISO2 < b.DestinationISO2
	})
	return flows
}

// ValuedFlow is a flow joined with its daily price
type ValuedFlow struct {
	Flow     models.PipelineFlow
	Scenario models.PricingScenario
	ValueEUR *float64
}

// Value prices every flow under the given scenario through the shared price
// matcher. Flows without a matching price keep a nil value instead of a
// guess.
func Value(matcher *pricing.Matcher, flows []models.PipelineFlow, prices []models.Price, scenario models.PricingScenario) []ValuedFlow {
	out := make([]ValuedFlow, 0, len(flows))
	for _, f := range flows {
		vf := ValuedFlow{Flow: f, Scenario: scenario}
		cand := pricing.Candidate{
			PricingCommodity: f.Commodity,
			Date:             f.Date,
			OriginISO2:       f.OriginISO2,
			DestinationISO2:  f.DestinationISO2,
		}
		if p := matcher.Match(prices, cand, scenario); p != nil {
			v := p.EURPerTonne * f.Tonnes
			vf.ValueEUR = &v
		}
		out = append(out, vf)
	}
	return out
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
