package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/cache"
	"example.com/fossiltrack/internal/counter"
	"example.com/fossiltrack/internal/flows"
	"example.com/fossiltrack/internal/messaging"
	"example.com/fossiltrack/internal/metrics"
	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/pricing"
	"example.com/fossiltrack/internal/repositories"
	"example.com/fossiltrack/internal/tracing"
)

// CounterService assembles and publishes the daily counter series. A run
// gathers the three source streams, applies the corrective rules, and
// replaces the published series atomically once the sanity gate passes.
type CounterService struct {
	cfg config.Config

	computed    *repositories.ComputedTradeRepository
	flowRepo    *repositories.PipelineFlowRepository
	kplerRepo   *repositories.KplerTradeRepository
	zones       *repositories.ZoneRepository
	prices      *repositories.PriceRepository
	counterRepo *repositories.CounterRepository

	matcher  *pricing.Matcher
	cache    *cache.RedisCache
	tracer   tracing.Tracer
	notifier messaging.Notifier
	metrics  *metrics.Metrics
}

// NewCounterService wires the counter publisher
func NewCounterService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	cfg config.Config,
	redisCache *cache.RedisCache,
	tracer tracing.Tracer,
	notifier messaging.Notifier,
	collector *metrics.Metrics,
) *CounterService {
	return &CounterService{
		cfg:         cfg,
		computed:    repositories.NewComputedTradeRepository(db, readOnlyDB),
		flowRepo:    repositories.NewPipelineFlowRepository(db, readOnlyDB),
		kplerRepo:   repositories.NewKplerTradeRepository(db, readOnlyDB),
		zones:       repositories.NewZoneRepository(db, readOnlyDB),
		prices:      repositories.NewPriceRepository(db, readOnlyDB),
		counterRepo: repositories.NewCounterRepository(db, readOnlyDB),
		matcher:     pricing.NewMatcher(sanctionedOrigin(cfg)),
		cache:       redisCache,
		tracer:      tracer,
		notifier:    notifier,
		metrics:     collector,
	}
}

// counterConfig parses the date-gated rule settings
func (s *CounterService) counterConfig() (counter.Config, error) {
	cfg := counter.Config{
		Version:          models.CounterVersion(s.cfg.Counter.Version),
		LNGPhaseOutDays:  s.cfg.Counter.LNGPhaseOutDays,
		TransitNeighbor:  s.cfg.Counter.TransitNeighbor,
		SanityLowerRatio: s.cfg.Counter.SanityLowerRatio,
		SanityUpperRatio: s.cfg.Counter.SanityUpperRatio,
		SanityAbsEUR:     s.cfg.Counter.SanityAbsoluteEUR,
		Force:            s.cfg.Counter.Force,
	}
	for _, d := range []struct {
		raw    string
		target *time.Time
		name   string
	}{
		{s.cfg.Counter.AnchorDate, &cfg.AnchorDate, "anchor_date"},
		{s.cfg.Counter.CoalBanDate, &cfg.CoalBanDate, "coal_ban_date"},
		{s.cfg.Counter.LNGPhaseOutDate, &cfg.LNGPhaseOutDate, "lng_phase_out_date"},
		{s.cfg.Counter.TransitCutoffDate, &cfg.TransitCutoff, "transit_cutoff_date"},
	} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", d.raw)
		if err != nil {
			return counter.Config{}, errors.Wrapf(err, "invalid counter %s", d.name)
		}
		*d.target = t
	}
	return cfg, nil
}

// RunCounter assembles, gates, and publishes one counter run
func (s *CounterService) RunCounter(ctx context.Context) error {
	txn := s.tracer.StartTransaction("counter-run")
	defer s.tracer.EndTransaction(txn)

	cfg, err := s.counterConfig()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	seaborne, overland, thirdParty, err := s.gatherPoints(ctx, cfg, now)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return err
	}

	fresh := counter.Assemble(cfg, seaborne, overland, thirdParty, now)

	live, err := s.counterRepo.ListPublished(ctx, cfg.Version)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return err
	}

	if cfg.Force {
		log.Warn().Msg("Counter sanity gate skipped by force flag")
	} else if err := counter.SanityCheck(cfg, toCounterLike(fresh), toCounterLike(live)); err != nil {
		s.tracer.RecordError(txn, err)
		notifyErr := s.notifier.Notify(ctx, messaging.Alert{
			Kind:    messaging.AlertSanityFailure,
			Subject: string(cfg.Version),
			Detail:  err.Error(),
		})
		if notifyErr != nil {
			log.Error().Err(notifyErr).Msg("Failed to send sanity alert")
		}
		return err
	}

	if err := s.counterRepo.Publish(ctx, cfg.Version, fresh); err != nil {
		s.tracer.RecordError(txn, err)
		return err
	}
	s.metrics.IncrementCounterBy(metrics.MetricCounterRowsPublished, int64(len(fresh)))
	s.invalidateCache(ctx, cfg.Version)

	err = s.notifier.Notify(ctx, messaging.Alert{
		Kind:    messaging.AlertCounterPublished,
		Subject: string(cfg.Version),
		Detail:  fmt.Sprintf("%d rows published", len(fresh)),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to send publication alert")
	}

	log.Info().
		Str("version", string(cfg.Version)).
		Int("rows", len(fresh)).
		Msg("Counter published")
	return nil
}

// gatherPoints loads the three source streams since the anchor date
func (s *CounterService) gatherPoints(ctx context.Context, cfg counter.Config, now time.Time) (seaborne, overland, thirdParty []counter.Point, err error) {
	from := cfg.AnchorDate
	if from.IsZero() {
		from = now.AddDate(-1, 0, 0)
	}

	computedRows, err := s.computed.ListRange(ctx, from, now)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, row := range computedRows {
		seaborne = append(seaborne, seabornePoint(row))
	}

	overland, err = s.overlandPoints(ctx, from, now)
	if err != nil {
		return nil, nil, nil, err
	}

	thirdParty, err = s.thirdPartyPoints(ctx, from, now)
	if err != nil {
		return nil, nil, nil, err
	}
	return seaborne, overland, thirdParty, nil
}

// seabornePoint keys a computed trade by its arrival date; an open arrival
// falls back to the departure date until the voyage completes
func seabornePoint(row models.ComputedTrade) counter.Point {
	date := row.DepartureDate
	if row.ArrivalDate != nil {
		date = *row.ArrivalDate
	}
	p := counter.Point{
		Date:            date,
		Commodity:       row.Commodity,
		DestinationISO2: row.DestinationISO2,
		Scenario:        row.Scenario,
		Tonnes:          row.Tonnes,
	}
	if row.ValueEUR != nil {
		p.ValueEUR = *row.ValueEUR
	}
	return p
}

// overlandPoints values the stored flows under every scenario
func (s *CounterService) overlandPoints(ctx context.Context, from, to time.Time) ([]counter.Point, error) {
	flowRows, err := s.flowRepo.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	prices, err := s.prices.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var points []counter.Point
	for _, scenario := range models.AllScenarios {
		for _, vf := range flows.Value(s.matcher, flowRows, prices, scenario) {
			p := counter.Point{
				Date:            vf.Flow.Date,
				Commodity:       vf.Flow.Commodity,
				DestinationISO2: vf.Flow.DestinationISO2,
				Scenario:        scenario,
				Tonnes:          vf.Flow.Tonnes,
			}
			if vf.ValueEUR != nil {
				p.ValueEUR = *vf.ValueEUR
			}
			points = append(points, p)
		}
	}
	return points, nil
}

// thirdPartyPoints prices the third-party trade mirror. Trades whose
// destination zone is unknown or unpriceable contribute tonnage only.
func (s *CounterService) thirdPartyPoints(ctx context.Context, from, to time.Time) ([]counter.Point, error) {
	rows, err := s.kplerRepo.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	prices, err := s.prices.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	origin := sanctionedOrigin(s.cfg)
	var points []counter.Point
	for _, row := range rows {
		if row.ValueTonne == nil {
			continue
		}
		destISO2 := ""
		if row.DestinationZoneID != "" {
			if zone, err := s.zones.GetByID(ctx, row.DestinationZoneID); err == nil {
				destISO2 = zone.ISO2
			}
		}
		for _, scenario := range models.AllScenarios {
			p := counter.Point{
				Date:            row.DepartureUTC,
				Commodity:       row.Commodity,
				DestinationISO2: destISO2,
				Scenario:        scenario,
				Tonnes:          *row.ValueTonne,
			}
			cand := pricing.Candidate{
				PricingCommodity: row.Commodity,
				Date:             row.DepartureUTC,
				OriginISO2:       origin,
				DestinationISO2:  destISO2,
			}
			if price := s.matcher.Match(prices, cand, scenario); price != nil {
				p.ValueEUR = price.EURPerTonne * *row.ValueTonne
			}
			points = append(points, p)
		}
	}
	return points, nil
}

func toCounterLike(rows []models.CounterRow) []counter.CounterLike {
	out := make([]counter.CounterLike, 0, len(rows))
	for _, r := range rows {
		out = append(out, counter.CounterLike{
			CommodityGroup:    r.CommodityGroup,
			DestinationRegion: r.DestinationRegion,
			DestinationISO2:   r.DestinationISO2,
			ValueEUR:          r.ValueEUR,
		})
	}
	return out
}

func (s *CounterService) invalidateCache(ctx context.Context, version models.CounterVersion) {
	for _, scenario := range models.AllScenarios {
		key := cache.GetCounterCacheKey(string(version), string(scenario))
		if err := s.cache.Set(ctx, key, nil, time.Millisecond); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Counter cache invalidation skipped")
		}
	}
}
