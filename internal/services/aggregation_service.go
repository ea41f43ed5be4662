package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/fossiltrack/internal/aggregate"
	"example.com/fossiltrack/internal/repositories"
	"example.com/fossiltrack/internal/tracing"
)

// AggregationService answers read queries over the computed trade view
type AggregationService struct {
	computed *repositories.ComputedTradeRepository
	currency *repositories.CurrencyRateRepository
	tracer   tracing.Tracer
}

// NewAggregationService creates the query service
func NewAggregationService(db *gorm.DB, readOnlyDB *gorm.DB, tracer tracing.Tracer) *AggregationService {
	return &AggregationService{
		computed: repositories.NewComputedTradeRepository(db, readOnlyDB),
		currency: repositories.NewCurrencyRateRepository(db, readOnlyDB),
		tracer:   tracer,
	}
}

// earliestTrackedDate bounds unqualified queries
var earliestTrackedDate = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// Aggregate runs one aggregation query against the view
func (s *AggregationService) Aggregate(ctx context.Context, q aggregate.Query) ([]aggregate.Row, error) {
	txn := s.tracer.StartTransaction("aggregate-query")
	defer s.tracer.EndTransaction(txn)

	from := earliestTrackedDate
	if q.DateFrom != nil {
		from = *q.DateFrom
	}
	to := time.Now().UTC()
	if q.DateTo != nil {
		to = *q.DateTo
	}

	trs, err := s.computed.ListRange(ctx, from, to)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	rates, err := s.currency.ListRange(ctx, from, to)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	rows, err := aggregate.Run(q, trs, rates)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	return rows, nil
}
