package flows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/pricing"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func f64(v float64) *float64 { return &v }

func reading(point, direction, operator string, date string, tonnes float64, confirmed bool) Reading {
	return Reading{
		OperatorKey:     operator,
		PointKey:        point,
		DirectionKey:    direction,
		Date:            d(date),
		OriginISO2:      "RU",
		DestinationISO2: "DE",
		Commodity:       models.CommodityNaturalGas,
		Tonnes:          f64(tonnes),
		Confirmed:       confirmed,
	}
}

func TestAggregatePrefersConfirmedReading(t *testing.T) {
	flows := Aggregate([]Reading{
		reading("nord-1", "entry", "op-a", "2023-01-01", 900, false),
		reading("nord-1", "entry", "op-b", "2023-01-01", 1000, true),
	})
	require.Len(t, flows, 1)
	require.Equal(t, 1000.0, flows[0].Tonnes)
	require.Equal(t, "DE", flows[0].DestinationISO2)
}

func TestAggregateDropsPipeInPipe(t *testing.T) {
	r := reading("nord-1", "entry", "op-a", "2023-01-01", 500, true)
	dup := reading("nord-2", "entry", "op-a", "2023-01-01", 500, true)
	dup.PipeInPipe = true

	flows := Aggregate([]Reading{r, dup})
	require.Len(t, flows, 1)
	require.Equal(t, 500.0, flows[0].Tonnes)
}

func TestAggregateSumsDistinctPoints(t *testing.T) {
	flows := Aggregate([]Reading{
		reading("nord-1", "entry", "op-a", "2023-01-01", 300, true),
		reading("yamal-1", "entry", "op-a", "2023-01-01", 200, true),
	})
	require.Len(t, flows, 1)
	require.Equal(t, 500.0, flows[0].Tonnes)
}

func TestAggregateConvertsEnergyReadings(t *testing.T) {
	r := Reading{
		OperatorKey: "op-a", PointKey: "nord-1", DirectionKey: "entry",
		Date: d("2023-01-01"), OriginISO2: "RU", DestinationISO2: "DE",
		Commodity: models.CommodityNaturalGas, MWh: f64(133), Confirmed: true,
	}
	flows := Aggregate([]Reading{r})
	require.Len(t, flows, 1)
	require.InDelta(t, 10.0, flows[0].Tonnes, 0.01)
}

func TestValueJoinsDailyPrice(t *testing.T) {
	matcher := pricing.NewMatcher("RU")
	flows := []models.PipelineFlow{{
		Date: d("2023-01-01"), Commodity: models.CommodityNaturalGas,
		OriginISO2: "RU", DestinationISO2: "DE", Tonnes: 1000,
	}}
	prices := []models.Price{{
		Commodity: models.CommodityNaturalGas, Date: d("2023-01-01"),
		Scenario: models.ScenarioDefault, EURPerTonne: 600,
	}}

	valued := Value(matcher, flows, prices, models.ScenarioDefault)
	require.Len(t, valued, 1)
	require.NotNil(t, valued[0].ValueEUR)
	require.Equal(t, 600000.0, *valued[0].ValueEUR)
}

func TestValueLeavesUnpricedFlowNil(t *testing.T) {
	matcher := pricing.NewMatcher("RU")
	flows := []models.PipelineFlow{{
		Date: d("2023-01-02"), Commodity: models.CommodityNaturalGas,
		OriginISO2: "RU", DestinationISO2: "DE", Tonnes: 1000,
	}}

	valued := Value(matcher, flows, nil, models.ScenarioDefault)
	require.Len(t, valued, 1)
	require.Nil(t, valued[0].ValueEUR)
}
