package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/berth"
	"example.com/fossiltrack/internal/cache"
	"example.com/fossiltrack/internal/classify"
	"example.com/fossiltrack/internal/messaging"
	"example.com/fossiltrack/internal/metrics"
	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/parties"
	"example.com/fossiltrack/internal/pipeline"
	"example.com/fossiltrack/internal/pricing"
	"example.com/fossiltrack/internal/providers"
	"example.com/fossiltrack/internal/repositories"
	"example.com/fossiltrack/internal/search"
	"example.com/fossiltrack/internal/tracing"
	"example.com/fossiltrack/internal/voyage"
)

// shipParallelism bounds per-ship fan-out within a stage
const shipParallelism = 8

// TrackerService drives the batch pipeline: upstream fetches, voyage
// reconstruction, party resolution, trade computation, and the integrity
// suite. Stages run strictly in order; re-running any stage is idempotent.
type TrackerService struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
	cfg        config.Config

	ships       *repositories.ShipRepository
	ports       *repositories.PortRepository
	portcalls   *repositories.PortCallRepository
	events      *repositories.EventRepository
	positions   *repositories.PositionRepository
	shipments   *repositories.ShipmentRepository
	berths      *repositories.BerthRepository
	companies   *repositories.CompanyRepository
	roles       *repositories.ShipCompanyRepository
	flags       *repositories.ShipFlagRepository
	prices      *repositories.PriceRepository
	flowRepo    *repositories.PipelineFlowRepository
	computed    *repositories.ComputedTradeRepository
	providerLog *repositories.ProviderCallRepository
	currency    *repositories.CurrencyRateRepository
	kplerRepo   *repositories.KplerTradeRepository
	zones       *repositories.ZoneRepository

	portcallProv *providers.PortcallProvider
	positionProv *providers.PositionProvider
	registry     *providers.RegistryScraper
	flowProv     *providers.FlowProvider
	kplerProv    *providers.KplerProvider
	currencyProv *providers.CurrencyProvider

	ingester *parties.Ingester
	matcher  *pricing.Matcher
	runner   *pipeline.Runner

	cache    *cache.RedisCache
	elastic  *search.ElasticClient
	tracer   tracing.Tracer
	notifier messaging.Notifier
	metrics  *metrics.Metrics
}

// NewTrackerService wires the pipeline service
func NewTrackerService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	cfg config.Config,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	tracer tracing.Tracer,
	notifier messaging.Notifier,
	collector *metrics.Metrics,
) (*TrackerService, error) {
	providerLog := repositories.NewProviderCallRepository(db, readOnlyDB)

	registry, err := providers.NewRegistryScraper(cfg.Providers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build registry scraper")
	}

	companies := repositories.NewCompanyRepository(db, readOnlyDB)
	roles := repositories.NewShipCompanyRepository(db, readOnlyDB)

	return &TrackerService{
		db:          db,
		readOnlyDB:  readOnlyDB,
		cfg:         cfg,
		ships:       repositories.NewShipRepository(db, readOnlyDB),
		ports:       repositories.NewPortRepository(db, readOnlyDB),
		portcalls:   repositories.NewPortCallRepository(db, readOnlyDB),
		events:      repositories.NewEventRepository(db, readOnlyDB),
		positions:   repositories.NewPositionRepository(db, readOnlyDB),
		shipments:   repositories.NewShipmentRepository(db, readOnlyDB),
		berths:      repositories.NewBerthRepository(db, readOnlyDB),
		companies:   companies,
		roles:       roles,
		flags:       repositories.NewShipFlagRepository(db, readOnlyDB),
		prices:      repositories.NewPriceRepository(db, readOnlyDB),
		flowRepo:    repositories.NewPipelineFlowRepository(db, readOnlyDB),
		computed:    repositories.NewComputedTradeRepository(db, readOnlyDB),
		providerLog: providerLog,
		currency:    repositories.NewCurrencyRateRepository(db, readOnlyDB),
		kplerRepo:   repositories.NewKplerTradeRepository(db, readOnlyDB),
		zones:       repositories.NewZoneRepository(db, readOnlyDB),

		portcallProv: providers.NewPortcallProvider(cfg.Providers, providerLog),
		positionProv: providers.NewPositionProvider(cfg.Providers),
		registry:     registry,
		flowProv:     providers.NewFlowProvider(cfg.Providers),
		kplerProv:    providers.NewKplerProvider(cfg.Providers),
		currencyProv: providers.NewCurrencyProvider(cfg.Providers),

		ingester: parties.NewIngester(companies, roles, parties.NewImputer(nil)),
		matcher:  pricing.NewMatcher(sanctionedOrigin(cfg)),
		runner:   pipeline.NewRunner(cfg.Pipeline.StageTimeout),

		cache:    redisCache,
		elastic:  elasticClient,
		tracer:   tracer,
		notifier: notifier,
		metrics:  collector,
	}, nil
}

// sanctionedOrigin is the first monitored origin country; the corpus of
// corrective and pricing rules is keyed on it
func sanctionedOrigin(cfg config.Config) string {
	if len(cfg.Pipeline.OriginISO2) > 0 {
		return cfg.Pipeline.OriginISO2[0]
	}
	return "RU"
}

// RunPipeline executes one full pipeline cycle
func (s *TrackerService) RunPipeline(ctx context.Context) error {
	txn := s.tracer.StartTransaction("pipeline-run")
	defer s.tracer.EndTransaction(txn)

	stages := []pipeline.Stage{
		{Name: "refresh-reference", Run: s.refreshReference},
		{Name: "fetch-portcalls", Run: s.fetchPortcalls},
		{Name: "build-shipments", Run: s.buildShipments},
		{Name: "detect-berths", Run: s.detectBerths},
		{Name: "resolve-parties", Run: s.resolveParties},
		{Name: "ingest-flows", Run: s.ingestFlows},
		{Name: "ingest-trades", Run: s.ingestThirdPartyTrades},
		{Name: "compute-trades", Run: s.computeTrades},
		{Name: "verify-integrity", Run: s.verifyIntegrity},
	}

	progress, err := s.runner.Run(ctx, stages)
	if err != nil {
		s.tracer.RecordError(txn, err)
		if pipeline.ShouldBackOff(err) {
			notifyErr := s.notifier.Notify(ctx, messaging.Alert{
				Kind:    messaging.AlertStageExhausted,
				Subject: progress.Failed,
				Detail:  err.Error(),
			})
			if notifyErr != nil {
				log.Error().Err(notifyErr).Msg("Failed to send exhaustion alert")
			}
		}
		return err
	}

	log.Info().Int("stages", len(progress.Completed)).Msg("Pipeline cycle completed")
	return nil
}

// window resolves the global scan window from configuration. An empty
// date_to means "up to now".
func (s *TrackerService) window() (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", s.cfg.Pipeline.DateFrom)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "invalid pipeline date_from")
	}
	to := time.Now().UTC()
	if s.cfg.Pipeline.DateTo != "" {
		to, err = time.Parse("2006-01-02", s.cfg.Pipeline.DateTo)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "invalid pipeline date_to")
		}
	}
	return from, to, nil
}

// refreshReference pulls the small reference feeds: currency rates and the
// third-party zone dictionary
func (s *TrackerService) refreshReference(ctx context.Context) error {
	from, to, err := s.window()
	if err != nil {
		return err
	}

	rates, err := s.currencyProv.FetchRange(ctx, from, to)
	if err != nil {
		return err
	}
	if err := s.currency.UpsertBatch(ctx, rates); err != nil {
		return err
	}

	zones, err := s.kplerProv.FetchZones(ctx)
	if err != nil {
		return err
	}
	if err := s.zones.UpsertBatch(ctx, zones); err != nil {
		return err
	}

	return s.reclassifyShips(ctx)
}

// reclassifyShips re-derives the commodity class of every monitored ship
// from its registry type, persisting only actual changes
func (s *TrackerService) reclassifyShips(ctx context.Context) error {
	ships, err := s.ships.ListMonitored(ctx, s.cfg.Pipeline.MinDWT)
	if err != nil {
		return err
	}
	changed := 0
	for i := range ships {
		before := ships[i]
		classify.Apply(&ships[i])
		if ships[i].Commodity == before.Commodity &&
			ships[i].Quantity == before.Quantity &&
			ships[i].Unit == before.Unit {
			continue
		}
		if err := s.ships.Upsert(ctx, &ships[i]); err != nil {
			return err
		}
		changed++
	}
	if changed > 0 {
		log.Info().Int("ships", changed).Msg("Ship classifications updated")
	}
	return nil
}

// fetchPortcalls tops up portcall coverage for every monitored ship. The
// call log keeps already-covered windows from being paid for twice.
func (s *TrackerService) fetchPortcalls(ctx context.Context) error {
	from, to, err := s.window()
	if err != nil {
		return err
	}

	ships, err := s.ships.ListMonitored(ctx, s.cfg.Pipeline.MinDWT)
	if err != nil {
		return err
	}

	covered, err := s.providerLog.CoveredWindows(ctx, "portcall")
	if err != nil {
		return err
	}

	gaps := make([]voyage.Gap, 0, len(ships))
	for _, ship := range ships {
		gaps = append(gaps, voyage.Gap{ShipIMO: ship.IMO, From: from, To: to})
	}
	minWindow := time.Duration(s.cfg.Pipeline.MinWindowDays) * 24 * time.Hour
	requests := voyage.PlanBackfill(gaps, covered, minWindow)
	if len(requests) == 0 {
		log.Info().Msg("Portcall coverage already complete")
		return nil
	}

	return s.fetchRequests(ctx, requests)
}

// fetchRequests executes planned portcall fetches with bounded parallelism
func (s *TrackerService) fetchRequests(ctx context.Context, requests []voyage.Request) error {
	return pipeline.ForEach(ctx, requests, shipParallelism, func(ctx context.Context, req voyage.Request) error {
		calls, err := s.portcallProv.Fetch(ctx, req)
		if err != nil {
			s.metrics.RecordError(metrics.MetricProviderCalls)
			return err
		}
		s.metrics.RecordSuccess(metrics.MetricProviderCalls)

		stats, err := s.portcalls.UpsertBatch(ctx, calls)
		if err != nil {
			return err
		}
		s.metrics.IncrementCounterBy(metrics.MetricPortcallsUpserted, int64(stats.Inserted))
		s.metrics.IncrementCounterBy(metrics.MetricPortcallsDuplicated, int64(stats.Duplicated))
		s.metrics.IncrementCounterBy(metrics.MetricPortcallsFailed, int64(stats.Failed))
		return nil
	})
}

// buildShipments reconstructs voyages for the whole fleet and persists the
// result per ship. Gaps revealed by the scan are back-filled once and the
// affected ships rebuilt.
func (s *TrackerService) buildShipments(ctx context.Context) error {
	from, to, err := s.window()
	if err != nil {
		return err
	}

	input, err := s.loadBuilderInput(ctx, from, to)
	if err != nil {
		return err
	}

	builderCfg := voyage.Config{
		OriginISO2: originSet(s.cfg),
		MinDWT:     s.cfg.Pipeline.MinDWT,
		MaxGap:     time.Duration(s.cfg.Pipeline.MaxGapDays) * 24 * time.Hour,
	}
	result := voyage.Build(builderCfg, input)

	if len(result.Gaps) > 0 {
		covered, err := s.providerLog.CoveredWindows(ctx, "portcall")
		if err != nil {
			return err
		}
		minWindow := time.Duration(s.cfg.Pipeline.MinWindowDays) * 24 * time.Hour
		requests := voyage.PlanBackfill(result.Gaps, covered, minWindow)
		if len(requests) > 0 {
			log.Info().Int("requests", len(requests)).Msg("Back-filling portcall gaps")
			if err := s.fetchRequests(ctx, requests); err != nil {
				return err
			}
			input, err = s.loadBuilderInput(ctx, from, to)
			if err != nil {
				return err
			}
			result = voyage.Build(builderCfg, input)
		}
	}

	byShip := make(map[string][]voyage.Voyage)
	for _, v := range result.Voyages {
		byShip[v.ShipIMO] = append(byShip[v.ShipIMO], v)
	}
	imos := make([]string, 0, len(byShip))
	for imo := range byShip {
		imos = append(imos, imo)
	}

	err = pipeline.ForEach(ctx, imos, shipParallelism, func(ctx context.Context, imo string) error {
		return s.shipments.ReplaceForShip(ctx, imo, byShip[imo])
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementCounterBy(metrics.MetricShipmentsBuilt, int64(len(result.Voyages)))
	log.Info().
		Int("voyages", len(result.Voyages)).
		Int("ships", len(imos)).
		Msg("Shipments rebuilt")
	return nil
}

func (s *TrackerService) loadBuilderInput(ctx context.Context, from, to time.Time) (voyage.Input, error) {
	ships, err := s.ships.ListMonitored(ctx, s.cfg.Pipeline.MinDWT)
	if err != nil {
		return voyage.Input{}, err
	}
	ports, err := s.ports.ListAll(ctx)
	if err != nil {
		return voyage.Input{}, err
	}
	events, err := s.events.ListSTS(ctx, from, to)
	if err != nil {
		return voyage.Input{}, err
	}

	input := voyage.Input{
		Ships:  make(map[string]models.Ship, len(ships)),
		Calls:  make(map[string][]models.PortCall, len(ships)),
		Events: events,
		Ports:  make(map[string]models.Port, len(ports)),
	}
	for _, p := range ports {
		input.Ports[p.ID] = p
	}
	for _, ship := range ships {
		input.Ships[ship.IMO] = ship
		calls, err := s.portcalls.ListByShip(ctx, ship.IMO, from, to)
		if err != nil {
			return voyage.Input{}, err
		}
		input.Calls[ship.IMO] = calls
	}
	return input, nil
}

func originSet(cfg config.Config) map[string]bool {
	set := make(map[string]bool, len(cfg.Pipeline.OriginISO2))
	for _, iso2 := range cfg.Pipeline.OriginISO2 {
		set[iso2] = true
	}
	return set
}

// detectBerths matches position tracks against berth polygons for both ends
// of every completed shipment
func (s *TrackerService) detectBerths(ctx context.Context) error {
	berthRows, err := s.berths.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(berthRows) == 0 {
		return nil
	}
	detector, err := berth.NewDetector(berthRows)
	if err != nil {
		return err
	}

	completed, err := s.shipments.ListByStatus(ctx, models.ShipmentCompleted)
	if err != nil {
		return err
	}

	return pipeline.ForEach(ctx, completed, shipParallelism, func(ctx context.Context, shipment models.Shipment) error {
		if err := s.detectEnd(ctx, detector, shipment, "departure", shipment.Departure.Timestamp); err != nil {
			return err
		}
		if shipment.Arrival == nil {
			return nil
		}
		return s.detectEnd(ctx, detector, shipment, "arrival", shipment.Arrival.Timestamp)
	})
}

// detectEnd detects the berth for one shipment end from positions within a
// day of the endpoint
func (s *TrackerService) detectEnd(ctx context.Context, detector *berth.Detector, shipment models.Shipment, end string, at time.Time) error {
	from, to := at.Add(-24*time.Hour), at.Add(24*time.Hour)

	positions, err := s.positions.Window(ctx, shipment.ShipIMO, from, to)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fetched, err := s.positionProv.FetchWindow(ctx, shipment.ShipIMO, from, to)
		if err != nil {
			return err
		}
		if _, err := s.positions.UpsertBatch(ctx, fetched); err != nil {
			return err
		}
		positions = fetched
	}

	match := detector.Detect(positions)
	if match == nil {
		return nil
	}
	return s.berths.Attach(ctx, &models.ShipmentBerth{
		ID:         uuid.New(),
		ShipmentID: shipment.ID,
		End:        end,
		BerthID:    match.Berth.ID,
		PositionID: &match.Position.ID,
	})
}
