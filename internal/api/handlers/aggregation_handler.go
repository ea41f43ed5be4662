package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/internal/aggregate"
	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/services"
	"example.com/fossiltrack/internal/tracing"
)

// AggregationHandler serves the read API over the computed trade view
type AggregationHandler struct {
	aggregation *services.AggregationService
	tracer      tracing.Tracer
}

// NewAggregationHandler creates a new aggregation handler
func NewAggregationHandler(aggregation *services.AggregationService, tracer tracing.Tracer) *AggregationHandler {
	return &AggregationHandler{aggregation: aggregation, tracer: tracer}
}

// HandleAggregate answers one aggregation query. Bad parameters and
// unknown aggregation keys are client errors; an empty result is 204.
func (h *AggregationHandler) HandleAggregate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-aggregate")
	defer h.tracer.EndTransaction(txn)

	q, err := parseQuery(c)
	if err != nil {
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.aggregation.Aggregate(c.Request.Context(), q)
	if err != nil {
		h.tracer.RecordError(txn, err)
		if errors.Is(err, aggregate.ErrUnknownKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("Aggregation query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if len(rows) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func parseQuery(c *gin.Context) (aggregate.Query, error) {
	var q aggregate.Query

	var err error
	if q.DateFrom, err = parseDate(c.Query("date_from")); err != nil {
		return q, errors.Wrap(err, "invalid date_from")
	}
	if q.DateTo, err = parseDate(c.Query("date_to")); err != nil {
		return q, errors.Wrap(err, "invalid date_to")
	}

	for _, v := range splitCSV(c.Query("commodity")) {
		q.Commodities = append(q.Commodities, models.Commodity(v))
	}
	q.Origins = splitCSV(c.Query("origin_iso2"))
	q.Destinations = splitCSV(c.Query("destination_iso2"))
	q.AggregateBy = splitCSV(c.Query("aggregate_by"))
	for _, v := range splitCSV(c.Query("pricing_scenario")) {
		q.Scenarios = append(q.Scenarios, models.PricingScenario(v))
	}
	q.Currencies = splitCSV(c.Query("currency"))

	if raw := c.Query("rolling_days"); raw != "" {
		if q.RollingDays, err = strconv.Atoi(raw); err != nil {
			return q, errors.Wrap(err, "invalid rolling_days")
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if q.LimitByGroup, err = strconv.Atoi(raw); err != nil {
			return q, errors.Wrap(err, "invalid limit")
		}
	}
	q.SortBy = c.Query("sort_by")
	q.SortDesc = c.Query("sort_desc") == "true"
	return q, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RegisterRoutes registers the handler's routes
func (h *AggregationHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/aggregate", h.HandleAggregate)
}
