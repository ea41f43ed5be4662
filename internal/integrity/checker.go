// Package integrity runs the post-assembly property suite. Blocking
// violations roll back publication; advisory ones are reported and carried.
package integrity

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/trades"
)

// Severity of a failed property
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

// Violation is one failed property instance
type Violation struct {
	Check    string
	Severity Severity
	Detail   string
}

// MonthlyTotal compares in-house and third-party tonnage for one month
type MonthlyTotal struct {
	OwnTonnes   float64
	KplerTonnes float64
}

// Dataset is the snapshot the suite runs over
type Dataset struct {
	Shipments      []models.Shipment
	Departures     []models.Departure
	ShipmentBerths []models.ShipmentBerth
	// InsurerChains holds every insurer record per ship, any order
	InsurerChains  map[string][]models.ShipCompany
	ComputedTrades []models.ComputedTrade
	// OverlandMonths marks months ("2006-01") with at least one flow row
	OverlandMonths map[string]bool
	MonthlyTotals  map[string]MonthlyTotal
	AnchorDate     time.Time
	Now            time.Time
}

// kplerToleranceRatio is the allowed relative gap between own and
// third-party monthly totals
const kplerToleranceRatio = 0.10

// Run evaluates every property and returns the violations in stable order
func Run(ds Dataset) []Violation {
	var vs []Violation
	vs = append(vs, checkUniqueEndpoints(ds)...)
	vs = append(vs, checkSTSDisjoint(ds)...)
	vs = append(vs, checkBerthReferences(ds)...)
	vs = append(vs, checkPriced(ds)...)
	vs = append(vs, checkInsurerChains(ds)...)
	vs = append(vs, checkOverlandCoverage(ds)...)
	vs = append(vs, checkMonthlyTotals(ds)...)
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Check != vs[j].Check {
			return vs[i].Check < vs[j].Check
		}
		return vs[i].Detail < vs[j].Detail
	})
	return vs
}

// HasBlocking reports whether publication must be rolled back
func HasBlocking(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

func checkUniqueEndpoints(ds Dataset) []Violation {
	var vs []Violation
	depSeen := make(map[uuid.UUID]uuid.UUID)
	arrSeen := make(map[uuid.UUID]uuid.UUID)
	for _, s := range ds.Shipments {
		if other, ok := depSeen[s.DepartureID]; ok {
			vs = append(vs, Violation{
				Check: "unique_endpoints", Severity: SeverityBlocking,
				Detail: fmt.Sprintf("departure %s shared by shipments %s and %s", s.DepartureID, other, s.ID),
			})
		}
		depSeen[s.DepartureID] = s.ID
		if s.ArrivalID == nil {
			continue
		}
		if other, ok := arrSeen[*s.ArrivalID]; ok {
			vs = append(vs, Violation{
				Check: "unique_endpoints", Severity: SeverityBlocking,
				Detail: fmt.Sprintf("arrival %s shared by shipments %s and %s", *s.ArrivalID, other, s.ID),
			})
		}
		arrSeen[*s.ArrivalID] = s.ID
	}
	return vs
}

func checkSTSDisjoint(ds Dataset) []Violation {
	portcallOf := make(map[uuid.UUID]uuid.UUID)
	for _, d := range ds.Departures {
		if d.PortCallID != nil {
			portcallOf[d.ID] = *d.PortCallID
		}
	}

	regular := make(map[uuid.UUID]bool)
	var vs []Violation
	for _, s := range ds.Shipments {
		if s.IsSTS {
			continue
		}
		if pc, ok := portcallOf[s.DepartureID]; ok {
			regular[pc] = true
		}
	}
	for _, s := range ds.Shipments {
		if !s.IsSTS {
			continue
		}
		pc, ok := portcallOf[s.DepartureID]
		if ok && regular[pc] {
			vs = append(vs, Violation{
				Check: "sts_disjoint", Severity: SeverityBlocking,
				Detail: fmt.Sprintf("portcall %s referenced by both a regular and an STS shipment", pc),
			})
		}
	}
	return vs
}

func checkBerthReferences(ds Dataset) []Violation {
	known := make(map[uuid.UUID]bool, len(ds.Shipments))
	for _, s := range ds.Shipments {
		known[s.ID] = true
	}
	var vs []Violation
	for _, sb := range ds.ShipmentBerths {
		if !known[sb.ShipmentID] {
			vs = append(vs, Violation{
				Check: "berth_references", Severity: SeverityBlocking,
				Detail: fmt.Sprintf("berth attachment %s references unknown shipment %s", sb.ID, sb.ShipmentID),
			})
		}
	}
	return vs
}

func checkPriced(ds Dataset) []Violation {
	if err := trades.ValidatePriced(ds.ComputedTrades); err != nil {
		return []Violation{{Check: "priceable_priced", Severity: SeverityBlocking, Detail: err.Error()}}
	}
	return nil
}

func checkInsurerChains(ds Dataset) []Violation {
	var vs []Violation
	for imo, chain := range ds.InsurerChains {
		if len(chain) == 0 {
			continue
		}
		hasRetroactive := false
		for _, rec := range chain {
			if rec.DateFrom == nil {
				hasRetroactive = true
				break
			}
		}
		if !hasRetroactive {
			vs = append(vs, Violation{
				Check: "insurer_chain_retroactive", Severity: SeverityAdvisory,
				Detail: fmt.Sprintf("ship %s insurer chain has no null date_from record", imo),
			})
		}
	}
	return vs
}

func checkOverlandCoverage(ds Dataset) []Violation {
	if ds.AnchorDate.IsZero() || ds.Now.IsZero() {
		return nil
	}
	var vs []Violation
	first := time.Date(ds.AnchorDate.Year(), ds.AnchorDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(ds.Now.Year(), ds.Now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		if !ds.OverlandMonths[key] {
			vs = append(vs, Violation{
				Check: "overland_coverage", Severity: SeverityAdvisory,
				Detail: fmt.Sprintf("no overland flow values for month %s", key),
			})
		}
	}
	return vs
}

func checkMonthlyTotals(ds Dataset) []Violation {
	var vs []Violation
	for month, t := range ds.MonthlyTotals {
		if t.KplerTonnes == 0 {
			continue
		}
		gap := math.Abs(t.OwnTonnes-t.KplerTonnes) / t.KplerTonnes
		if gap > kplerToleranceRatio {
			vs = append(vs, Violation{
				Check: "monthly_totals", Severity: SeverityAdvisory,
				Detail: fmt.Sprintf("month %s own %.0f t vs third-party %.0f t (gap %.0f%%)", month, t.OwnTonnes, t.KplerTonnes, gap*100),
			})
		}
	}
	return vs
}
