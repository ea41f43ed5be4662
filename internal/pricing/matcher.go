// Package pricing selects the per-tonne price for a trade under a pricing
// scenario. Selection is by dimension specificity over (destination,
// insurer, owner); among equally specific rows the lowest price binds, which
// models coexisting price caps.
package pricing

import (
	"time"

	"example.com/fossiltrack/internal/models"
)

// Candidate carries the trade attributes the matcher prices against
type Candidate struct {
	PricingCommodity models.Commodity
	Date             time.Time
	OriginISO2       string
	DestinationISO2  string
	InsurerISO2      string
	OwnerISO2        string
}

// Matcher matches trades to price rows
type Matcher struct {
	sanctionedOrigin string
}

// NewMatcher creates a matcher for the given sanctioned origin country
func NewMatcher(sanctionedOrigin string) *Matcher {
	return &Matcher{sanctionedOrigin: sanctionedOrigin}
}

// Match returns the binding price row among the given prices, or nil when no
// row matches. Prices are expected to share the candidate's commodity, day,
// and scenario; rows that do not are skipped.
func (m *Matcher) Match(prices []models.Price, c Candidate, scenario models.PricingScenario) *models.Price {
	day := c.Date.Truncate(24 * time.Hour)

	var best *models.Price
	bestScore := -1
	for idx := range prices {
		p := &prices[idx]
		if p.Commodity != c.PricingCommodity || p.Scenario != scenario {
			continue
		}
		if !p.Date.Truncate(24 * time.Hour).Equal(day) {
			continue
		}
		// Non-null departure-port targeting is reserved
		if p.DeparturePortIDs != nil {
			continue
		}
		// Outside the sanctioned origin only the fully generic row applies
		if c.OriginISO2 != m.sanctionedOrigin {
			if p.DestinationISO2s != nil || p.InsurerISO2s != nil || p.OwnerISO2s != nil {
				continue
			}
			if best == nil || p.EURPerTonne < best.EURPerTonne {
				best = p
				bestScore = 0
			}
			continue
		}

		if p.DestinationISO2s != nil && !p.DestinationISO2s.Contains(c.DestinationISO2) {
			continue
		}
		if p.InsurerISO2s != nil && !p.InsurerISO2s.Contains(c.InsurerISO2) {
			continue
		}
		if p.OwnerISO2s != nil && !p.OwnerISO2s.Contains(c.OwnerISO2) {
			continue
		}

		score := specificity(p)
		if score > bestScore || (score == bestScore && best != nil && p.EURPerTonne < best.EURPerTonne) {
			best = p
			bestScore = score
		}
	}
	return best
}

// specificity weighs non-null dimensions in order destination, insurer,
// owner, so a destination-targeted row always beats an insurer-targeted one
func specificity(p *models.Price) int {
	score := 0
	if p.DestinationISO2s != nil {
		score += 4
	}
	if p.InsurerISO2s != nil {
		score += 2
	}
	if p.OwnerISO2s != nil {
		score++
	}
	return score
}
