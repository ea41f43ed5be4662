// Package aggregate serves the query surface over the computed trade view:
// grouping, currency conversion, rolling means, sorting, and per-group
// limits.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"example.com/fossiltrack/internal/countries"
	"example.com/fossiltrack/internal/models"
)

// ErrUnknownKey rejects an unrecognized aggregate_by key with 400 semantics
var ErrUnknownKey = errors.New("unknown aggregation key")

// Aggregation keys accepted in aggregate_by
const (
	KeyCommodity          = "commodity"
	KeyCommodityGroup     = "commodity_group"
	KeyStatus             = "status"
	KeyDepartureDate      = "departure_date"
	KeyArrivalDate        = "arrival_date"
	KeyDeparturePort      = "departure_port"
	KeyDepartureCountry   = "departure_country"
	KeyDestinationPort    = "destination_port"
	KeyDestinationCountry = "destination_country"
	KeyDestinationRegion  = "destination_region"
	KeyShipOwnerISO2      = "ship_owner_iso2"
	KeyShipManagerISO2    = "ship_manager_iso2"
	KeyShipInsurerISO2    = "ship_insurer_iso2"
	KeyPricingScenario    = "pricing_scenario"
)

var recognizedKeys = map[string]bool{
	KeyCommodity: true, KeyCommodityGroup: true, KeyStatus: true,
	KeyDepartureDate: true, KeyArrivalDate: true,
	KeyDeparturePort: true, KeyDepartureCountry: true,
	KeyDestinationPort: true, KeyDestinationCountry: true, KeyDestinationRegion: true,
	KeyShipOwnerISO2: true, KeyShipManagerISO2: true, KeyShipInsurerISO2: true,
	KeyPricingScenario: true,
}

// Query is one aggregation request
type Query struct {
	DateFrom     *time.Time
	DateTo       *time.Time
	Commodities  []models.Commodity
	Origins      []string
	Destinations []string
	AggregateBy  []string
	Scenarios    []models.PricingScenario
	Currencies   []string
	RollingDays  int
	SortBy       string
	SortDesc     bool
	LimitByGroup int
}

// Row is one result line: every requested key plus values in EUR, tonnes,
// and each requested currency
type Row struct {
	Keys        map[string]string
	ValueEUR    float64
	ValueTonnes float64
	Currencies  map[string]float64
}

// Run aggregates the computed trades for the query. An empty result is a
// valid outcome, not an error.
func Run(q Query, trs []models.ComputedTrade, rates []models.CurrencyRate) ([]Row, error) {
	for _, k := range q.AggregateBy {
		if !recognizedKeys[k] {
			return nil, errors.Wrap(ErrUnknownKey, k)
		}
	}

	scenarios := q.Scenarios
	if len(scenarios) == 0 {
		scenarios = []models.PricingScenario{models.ScenarioDefault}
	}
	scenarioSet := make(map[models.PricingScenario]bool, len(scenarios))
	for _, s := range scenarios {
		scenarioSet[s] = true
	}

	rateIndex := indexRates(rates)

	type bucket struct {
		keys        map[string]string
		valueEUR    float64
		valueTonnes float64
		currencies  map[string]float64
	}
	buckets := make(map[string]*bucket)

	for _, tr := range trs {
		if !scenarioSet[tr.Scenario] {
			continue
		}
		if !matches(q, tr) {
			continue
		}

		keys := rowKeys(q.AggregateBy, tr)
		id := bucketID(keys)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{keys: keys, currencies: make(map[string]float64)}
			buckets[id] = b
		}
		eur := 0.0
		if tr.ValueEUR != nil {
			eur = *tr.ValueEUR
		}
		b.valueEUR += eur
		b.valueTonnes += tr.Tonnes
		for _, ccy := range q.Currencies {
			b.currencies[ccy] += eur * rateIndex.perEUR(day(tr.DepartureDate), ccy)
		}
	}

	rows := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, Row{
			Keys: b.keys, ValueEUR: b.valueEUR, ValueTonnes: b.valueTonnes, Currencies: b.currencies,
		})
	}

	sortRows(rows, q)
	if q.RollingDays > 1 {
		rows = applyRolling(rows, q)
	}
	rows = limitByGroup(rows, q)
	return rows, nil
}

func matches(q Query, tr models.ComputedTrade) bool {
	if q.DateFrom != nil && tr.DepartureDate.Before(*q.DateFrom) {
		return false
	}
	if q.DateTo != nil && tr.DepartureDate.After(*q.DateTo) {
		return false
	}
	if len(q.Commodities) > 0 && !containsCommodity(q.Commodities, tr.Commodity) {
		return false
	}
	if len(q.Origins) > 0 && !containsString(q.Origins, tr.OriginISO2) {
		return false
	}
	if len(q.Destinations) > 0 && !containsString(q.Destinations, tr.DestinationISO2) {
		return false
	}
	return true
}

// rowKeys resolves every aggregate_by key for one trade. Country-level keys
// expand to iso2, country name, and region columns.
func rowKeys(aggregateBy []string, tr models.ComputedTrade) map[string]string {
	keys := make(map[string]string, len(aggregateBy))
	for _, k := range aggregateBy {
		switch k {
		case KeyCommodity:
			keys[k] = string(tr.Commodity)
		case KeyCommodityGroup:
			keys[k] = tr.Commodity.Group()
		case KeyStatus:
			keys[k] = string(tr.Status)
		case KeyDepartureDate:
			keys[k] = tr.DepartureDate.Format("2006-01-02")
		case KeyArrivalDate:
			if tr.ArrivalDate != nil {
				keys[k] = tr.ArrivalDate.Format("2006-01-02")
			}
		case KeyDeparturePort:
			if tr.DeparturePortID != nil {
				keys[k] = *tr.DeparturePortID
			}
		case KeyDepartureCountry:
			keys["departure_iso2"] = tr.OriginISO2
			keys["departure_country"] = countries.Name(tr.OriginISO2)
			keys["departure_region"] = countries.Region(tr.OriginISO2)
		case KeyDestinationPort:
			if tr.DestinationPortID != nil {
				keys[k] = *tr.DestinationPortID
			}
		case KeyDestinationCountry:
			keys["destination_iso2"] = tr.DestinationISO2
			keys["destination_country"] = countries.Name(tr.DestinationISO2)
			keys["destination_region"] = countries.Region(tr.DestinationISO2)
		case KeyDestinationRegion:
			keys[k] = tr.DestinationRegion
		case KeyShipOwnerISO2:
			keys[k] = first(tr.OwnerISO2s)
		case KeyShipManagerISO2:
			keys[k] = first(tr.ManagerISO2s)
		case KeyShipInsurerISO2:
			keys[k] = first(tr.InsurerISO2s)
		case KeyPricingScenario:
			keys[k] = string(tr.Scenario)
		}
	}
	return keys
}

func bucketID(keys map[string]string) string {
	parts := make([]string, 0, len(keys))
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+"="+keys[name])
	}
	return strings.Join(parts, "|")
}

func sortRows(rows []Row, q Query) {
	less := func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch q.SortBy {
		case "", "value_eur":
			if a.ValueEUR != b.ValueEUR {
				return a.ValueEUR < b.ValueEUR
			}
		case "value_tonnes":
			if a.ValueTonnes != b.ValueTonnes {
				return a.ValueTonnes < b.ValueTonnes
			}
		default:
			if a.Keys[q.SortBy] != b.Keys[q.SortBy] {
				return a.Keys[q.SortBy] < b.Keys[q.SortBy]
			}
		}
		return rowKey(a) < rowKey(b)
	}
	if q.SortDesc {
		sort.Slice(rows, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.Slice(rows, less)
}

func rowKey(r Row) string {
	names := make([]string, 0, len(r.Keys))
	for name := range r.Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name + "=" + r.Keys[name] + "|")
	}
	return sb.String()
}

// applyRolling replaces each date bucket's value with the trailing mean
// over RollingDays, computed within the row's non-date group
func applyRolling(rows []Row, q Query) []Row {
	dateKey := ""
	for _, k := range q.AggregateBy {
		if k == KeyDepartureDate || k == KeyArrivalDate {
			dateKey = k
			break
		}
	}
	if dateKey == "" {
		return rows
	}

	groupOf := func(r Row) string {
		names := make([]string, 0, len(r.Keys))
		for name := range r.Keys {
			if name != dateKey {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		var sb strings.Builder
		for _, name := range names {
			sb.WriteString(name + "=" + r.Keys[name] + "|")
		}
		return sb.String()
	}

	groups := make(map[string][]int)
	for i, r := range rows {
		groups[groupOf(r)] = append(groups[groupOf(r)], i)
	}

	out := make([]Row, len(rows))
	copy(out, rows)
	for _, idxs := range groups {
		sort.Slice(idxs, func(a, b int) bool {
			return rows[idxs[a]].Keys[dateKey] < rows[idxs[b]].Keys[dateKey]
		})
		for pos, i := range idxs {
			start := pos - q.RollingDays + 1
			if start < 0 {
				start = 0
			}
			var sumEUR, sumT float64
			n := 0
			for _, j := range idxs[start : pos+1] {
				sumEUR += rows[j].ValueEUR
				sumT += rows[j].ValueTonnes
				n++
			}
			out[i].ValueEUR = sumEUR / float64(n)
			out[i].ValueTonnes = sumT / float64(n)
		}
	}
	return out
}

// limitByGroup keeps the first LimitByGroup rows per date group, or
// globally when no date key is requested
func limitByGroup(rows []Row, q Query) []Row {
	if q.LimitByGroup <= 0 {
		return rows
	}
	dateKey := ""
	for _, k := range q.AggregateBy {
		if k == KeyDepartureDate || k == KeyArrivalDate {
			dateKey = k
			break
		}
	}
	if dateKey == "" {
		if len(rows) > q.LimitByGroup {
			return rows[:q.LimitByGroup]
		}
		return rows
	}
	counts := make(map[string]int)
	var out []Row
	for _, r := range rows {
		d := r.Keys[dateKey]
		if counts[d] >= q.LimitByGroup {
			continue
		}
		counts[d]++
		out = append(out, r)
	}
	return out
}

type rateKey struct {
	date time.Time
	ccy  string
}

type rateLookup map[rateKey]float64

func indexRates(rates []models.CurrencyRate) rateLookup {
	idx := make(rateLookup, len(rates))
	for _, r := range rates {
		idx[rateKey{date: day(r.Date), ccy: r.Currency}] = r.PerEUR
	}
	return idx
}

// perEUR returns the conversion factor for one day; EUR is always 1 and a
// missing rate falls back to the identity rather than dropping the row
func (l rateLookup) perEUR(d time.Time, ccy string) float64 {
	if ccy == "EUR" {
		return 1
	}
	if v, ok := l[rateKey{date: d, ccy: ccy}]; ok {
		return v
	}
	return 1
}

func first(arr models.StringArray) string {
	for _, v := range arr {
		if v != "" {
			return v
		}
	}
	return ""
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsCommodity(list []models.Commodity, v models.Commodity) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
