package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/internal/models"
)

func queryContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/aggregate?"+rawQuery, nil)
	return c
}

func TestParseQueryFullParameterSet(t *testing.T) {
	c := queryContext(t, "date_from=2023-01-01&date_to=2023-06-30"+
		"&commodity=crude_oil,lng&origin_iso2=RU&destination_iso2=CN,IN"+
		"&aggregate_by=month,commodity&pricing_scenario=default"+
		"&currency=USD&rolling_days=7&limit=100&sort_by=value_eur&sort_desc=true")

	q, err := parseQuery(c)
	require.NoError(t, err)

	require.NotNil(t, q.DateFrom)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), *q.DateFrom)
	require.NotNil(t, q.DateTo)
	assert.Equal(t, []models.Commodity{models.CommodityCrudeOil, models.CommodityLNG}, q.Commodities)
	assert.Equal(t, []string{"RU"}, q.Origins)
	assert.Equal(t, []string{"CN", "IN"}, q.Destinations)
	assert.Equal(t, []string{"month", "commodity"}, q.AggregateBy)
	assert.Equal(t, []models.PricingScenario{models.ScenarioDefault}, q.Scenarios)
	assert.Equal(t, 7, q.RollingDays)
	assert.Equal(t, 100, q.LimitByGroup)
	assert.Equal(t, "value_eur", q.SortBy)
	assert.True(t, q.SortDesc)
}

func TestParseQueryEmptyIsValid(t *testing.T) {
	c := queryContext(t, "")

	q, err := parseQuery(c)
	require.NoError(t, err)

	assert.Nil(t, q.DateFrom)
	assert.Nil(t, q.DateTo)
	assert.Empty(t, q.Commodities)
	assert.Zero(t, q.LimitByGroup)
	assert.False(t, q.SortDesc)
}

func TestParseQueryRejectsMalformedValues(t *testing.T) {
	for name, raw := range map[string]string{
		"bad date_from":    "date_from=01-02-2023",
		"bad date_to":      "date_to=never",
		"bad rolling_days": "rolling_days=week",
		"bad limit":        "limit=ten",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseQuery(queryContext(t, raw))
			assert.Error(t, err)
		})
	}
}

func TestParseQueryTrimsListValues(t *testing.T) {
	c := queryContext(t, "origin_iso2=RU,%20KZ,,")

	q, err := parseQuery(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"RU", "KZ"}, q.Origins)
}
