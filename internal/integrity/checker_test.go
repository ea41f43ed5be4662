package integrity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

func violationsFor(vs []Violation, check string) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Check == check {
			out = append(out, v)
		}
	}
	return out
}

func TestSharedDepartureIsBlocking(t *testing.T) {
	dep := uuid.New()
	ds := Dataset{Shipments: []models.Shipment{
		{ID: uuid.New(), DepartureID: dep},
		{ID: uuid.New(), DepartureID: dep},
	}}

	vs := violationsFor(Run(ds), "unique_endpoints")
	require.Len(t, vs, 1)
	require.Equal(t, SeverityBlocking, vs[0].Severity)
	require.True(t, HasBlocking(vs))
}

func TestSharedArrivalIsBlocking(t *testing.T) {
	arr := uuid.New()
	ds := Dataset{Shipments: []models.Shipment{
		{ID: uuid.New(), DepartureID: uuid.New(), ArrivalID: &arr},
		{ID: uuid.New(), DepartureID: uuid.New(), ArrivalID: &arr},
	}}
	require.Len(t, violationsFor(Run(ds), "unique_endpoints"), 1)
}

func TestRegularAndSTSPortcallDisjoint(t *testing.T) {
	pc := uuid.New()
	depA, depB := uuid.New(), uuid.New()
	ds := Dataset{
		Departures: []models.Departure{
			{ID: depA, PortCallID: &pc},
			{ID: depB, PortCallID: &pc},
		},
		Shipments: []models.Shipment{
			{ID: uuid.New(), DepartureID: depA},
			{ID: uuid.New(), DepartureID: depB, IsSTS: true},
		},
	}

	vs := violationsFor(Run(ds), "sts_disjoint")
	require.Len(t, vs, 1)
	require.Equal(t, SeverityBlocking, vs[0].Severity)
}

func TestOrphanBerthAttachment(t *testing.T) {
	ds := Dataset{ShipmentBerths: []models.ShipmentBerth{
		{ID: uuid.New(), ShipmentID: uuid.New(), BerthID: "b-1"},
	}}
	require.Len(t, violationsFor(Run(ds), "berth_references"), 1)
}

func TestUnpricedPriceableTradeIsBlocking(t *testing.T) {
	ds := Dataset{ComputedTrades: []models.ComputedTrade{
		{TradeID: "t-1", PricingCommodity: models.CommodityCrudeOil},
	}}
	vs := violationsFor(Run(ds), "priceable_priced")
	require.Len(t, vs, 1)
	require.Equal(t, SeverityBlocking, vs[0].Severity)
}

func TestInsurerChainWithoutRetroactiveRow(t *testing.T) {
	from := time.Now()
	ds := Dataset{InsurerChains: map[string][]models.ShipCompany{
		"9000001": {{Role: models.RoleInsurer, DateFrom: &from}},
	}}
	vs := violationsFor(Run(ds), "insurer_chain_retroactive")
	require.Len(t, vs, 1)
	require.Equal(t, SeverityAdvisory, vs[0].Severity)
	require.False(t, HasBlocking(vs))
}

func TestInsurerChainWithRetroactiveRowPasses(t *testing.T) {
	from := time.Now()
	ds := Dataset{InsurerChains: map[string][]models.ShipCompany{
		"9000001": {
			{Role: models.RoleInsurer, DateFrom: nil},
			{Role: models.RoleInsurer, DateFrom: &from},
		},
	}}
	require.Empty(t, violationsFor(Run(ds), "insurer_chain_retroactive"))
}

func TestOverlandCoverageGaps(t *testing.T) {
	ds := Dataset{
		AnchorDate:     time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
		Now:            time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC),
		OverlandMonths: map[string]bool{"2023-01": true, "2023-03": true},
	}
	vs := violationsFor(Run(ds), "overland_coverage")
	require.Len(t, vs, 1)
	require.Contains(t, vs[0].Detail, "2023-02")
}

func TestMonthlyTotalsWithinTolerance(t *testing.T) {
	ds := Dataset{MonthlyTotals: map[string]MonthlyTotal{
		"2023-01": {OwnTonnes: 105, KplerTonnes: 100},
	}}
	require.Empty(t, violationsFor(Run(ds), "monthly_totals"))
}

func TestMonthlyTotalsGapReported(t *testing.T) {
	ds := Dataset{MonthlyTotals: map[string]MonthlyTotal{
		"2023-01": {OwnTonnes: 150, KplerTonnes: 100},
	}}
	vs := violationsFor(Run(ds), "monthly_totals")
	require.Len(t, vs, 1)
	require.Equal(t, SeverityAdvisory, vs[0].Severity)
}
