package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/internal/cache"
	"example.com/fossiltrack/internal/flows"
	"example.com/fossiltrack/internal/integrity"
	"example.com/fossiltrack/internal/messaging"
	"example.com/fossiltrack/internal/metrics"
	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/parties"
	"example.com/fossiltrack/internal/pricing"
	"example.com/fossiltrack/internal/providers"
	"example.com/fossiltrack/internal/trades"
)

// registryProfileTTL caches a scraped registry profile so a re-run within
// the same day does not burn a scraper session
const registryProfileTTL = 24 * time.Hour

// resolveParties scrapes the vessel registry for every monitored ship and
// records company, role, and flag observations
func (s *TrackerService) resolveParties(ctx context.Context) error {
	ships, err := s.ships.ListMonitored(ctx, s.cfg.Pipeline.MinDWT)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	// Scraper sessions are a serial resource, no fan-out here
	for _, ship := range ships {
		if err := s.resolveShipParties(ctx, ship.IMO, now); err != nil {
			if errors.Is(err, providers.ErrExhausted) {
				return err
			}
			log.Warn().Err(err).Str("imo", ship.IMO).Msg("Party resolution failed, continuing")
		}
	}
	return nil
}

func (s *TrackerService) resolveShipParties(ctx context.Context, imo string, now time.Time) error {
	profile, err := s.fetchProfileCached(ctx, imo)
	if err != nil {
		return err
	}

	if profile.FlagISO2 != "" {
		if err := s.recordFlag(ctx, imo, profile.FlagISO2, now); err != nil {
			return err
		}
	}

	seen := map[models.CompanyRole]bool{}
	for _, rec := range profile.Records {
		role := models.CompanyRole(rec.Role)
		seen[role] = true

		company, err := s.ingester.MatchOrCreateCompany(ctx, rec.ProviderIMO, rec.CompanyName, []string{rec.Address})
		if err != nil && !errors.Is(err, parties.ErrAmbiguousMatch) {
			return err
		}
		if errors.Is(err, parties.ErrAmbiguousMatch) {
			s.metrics.IncrementCounter(metrics.MetricCompaniesAmbiguous)
		}

		var companyID *uuid.UUID
		if company != nil {
			companyID = &company.ID
		}
		if err := s.ingester.RecordRole(ctx, imo, role, companyID, rec.DateFrom, now); err != nil {
			return err
		}
	}

	// Roles the registry stopped reporting become unknown observations
	for _, role := range []models.CompanyRole{models.RoleInsurer, models.RoleOwner, models.RoleManager} {
		if !seen[role] {
			if err := s.ingester.RecordRole(ctx, imo, role, nil, nil, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *TrackerService) fetchProfileCached(ctx context.Context, imo string) (*providers.RegistryProfile, error) {
	key := cache.GetShipCacheKey(imo)
	var cached providers.RegistryProfile
	if err := s.cache.Get(ctx, key, &cached); err == nil && cached.IMO != "" {
		return &cached, nil
	}

	profile, err := s.registry.FetchProfile(ctx, imo)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, profile, registryProfileTTL); err != nil {
		log.Warn().Err(err).Str("imo", imo).Msg("Failed to cache registry profile")
	}
	return profile, nil
}

// recordFlag inserts a flag observation when it differs from the newest one
func (s *TrackerService) recordFlag(ctx context.Context, imo, flagISO2 string, now time.Time) error {
	history, err := s.flags.History(ctx, imo)
	if err != nil {
		return err
	}
	if len(history) > 0 && history[len(history)-1].FlagISO2 == flagISO2 {
		return nil
	}
	return s.flags.Insert(ctx, &models.ShipFlag{
		ID:        uuid.New(),
		ShipIMO:   imo,
		FlagISO2:  flagISO2,
		DateFrom:  &now,
		UpdatedOn: now,
	})
}

// ingestFlows pulls physical overland readings and stores the daily
// aggregate
func (s *TrackerService) ingestFlows(ctx context.Context) error {
	from, to, err := s.window()
	if err != nil {
		return err
	}
	readings, err := s.flowProv.FetchReadings(ctx, from, to)
	if err != nil {
		return err
	}
	aggregated := flows.Aggregate(readings)
	if err := s.flowRepo.UpsertBatch(ctx, aggregated); err != nil {
		return err
	}
	log.Info().Int("readings", len(readings)).Int("flows", len(aggregated)).Msg("Overland flows ingested")
	return nil
}

// ingestThirdPartyTrades refreshes the third-party trade mirror
func (s *TrackerService) ingestThirdPartyTrades(ctx context.Context) error {
	from, to, err := s.window()
	if err != nil {
		return err
	}
	rows, err := s.kplerProv.FetchTrades(ctx, from, to)
	if err != nil {
		return err
	}
	return s.kplerRepo.UpsertBatch(ctx, rows)
}

// computeTrades re-materializes the computed trade view in monthly
// partitions and re-indexes the shipments behind it
func (s *TrackerService) computeTrades(ctx context.Context) error {
	from, to, err := s.window()
	if err != nil {
		return err
	}

	shipments, err := s.shipments.ListAll(ctx)
	if err != nil {
		return err
	}
	ports, err := s.ports.ListAll(ctx)
	if err != nil {
		return err
	}
	portsByID := make(map[string]models.Port, len(ports))
	for _, p := range ports {
		portsByID[p.ID] = p
	}
	prices, err := s.prices.ListRange(ctx, from, to)
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	buffer := time.Duration(s.cfg.Pipeline.InsuranceBufferDays) * 24 * time.Hour
	byMonth := make(map[string][]models.ComputedTrade)

	for i := range shipments {
		shipment := &shipments[i]
		in, err := s.tradeInput(ctx, shipment, portsByID, buffer)
		if err != nil {
			return err
		}
		for _, scenario := range models.AllScenarios {
			row := s.priceAndFreeze(*in, scenario, prices, asOf)
			byMonth[row.Month] = append(byMonth[row.Month], row)
		}
	}

	for month, rows := range byMonth {
		if err := s.computed.ReplaceMonth(ctx, month, rows); err != nil {
			return errors.Wrapf(err, "failed to replace partition %s", month)
		}
		s.metrics.IncrementCounterBy(metrics.MetricTradesComputed, int64(len(rows)))
	}

	return s.indexShipments(ctx, shipments, portsByID)
}

// tradeInput assembles the frozen-join input for one shipment
func (s *TrackerService) tradeInput(ctx context.Context, shipment *models.Shipment, ports map[string]models.Port, buffer time.Duration) (*trades.Input, error) {
	ship, err := s.ships.GetByIMO(ctx, shipment.ShipIMO)
	if err != nil {
		return nil, err
	}

	departure := shipment.Departure.Timestamp
	var originISO2, departurePortName string
	if shipment.Departure.PortID != nil {
		if p, ok := ports[*shipment.Departure.PortID]; ok {
			originISO2 = p.CountryISO2
			departurePortName = p.Name
		}
	}
	var destinationISO2 string
	var destinationPortID *string
	var arrivalDate *time.Time
	if shipment.Arrival != nil {
		ts := shipment.Arrival.Timestamp
		arrivalDate = &ts
		destinationPortID = shipment.Arrival.PortID
		if shipment.Arrival.PortID != nil {
			if p, ok := ports[*shipment.Arrival.PortID]; ok {
				destinationISO2 = p.CountryISO2
			}
		}
	}

	vessel, err := s.vesselInfo(ctx, ship, departure, buffer)
	if err != nil {
		return nil, err
	}

	pricingCommodity := pricing.PricingCommodity(
		shipment.Commodity, originISO2, departurePortName, "", sanctionedOrigin(s.cfg))

	return &trades.Input{
		Identity: trades.Identity{
			TradeID:   shipment.ID.String(),
			ProductID: string(shipment.Commodity),
		},
		ShipmentID:        &shipment.ID,
		Status:            shipment.Status,
		DepartureDate:     departure,
		ArrivalDate:       arrivalDate,
		DeparturePortID:   shipment.Departure.PortID,
		DestinationPortID: destinationPortID,
		OriginISO2:        originISO2,
		DestinationISO2:   destinationISO2,
		Commodity:         shipment.Commodity,
		PricingCommodity:  pricingCommodity,
		Tonnes:            shipment.Quantity,
		Vessels:           []trades.VesselInfo{vessel},
	}, nil
}

// vesselInfo resolves the parties applicable at departure time
func (s *TrackerService) vesselInfo(ctx context.Context, ship *models.Ship, departure time.Time, buffer time.Duration) (trades.VesselInfo, error) {
	info := trades.VesselInfo{
		IMO:         ship.IMO,
		Type:        ship.Type,
		CapacityDWT: ship.DWT,
		YearBuilt:   ship.YearBuilt,
	}

	for _, role := range []models.CompanyRole{models.RoleInsurer, models.RoleOwner, models.RoleManager} {
		history, err := s.roles.History(ctx, ship.IMO, role)
		if err != nil {
			return info, err
		}
		rec := parties.Applicable(history, departure, buffer)
		if rec == nil || rec.Company == nil {
			continue
		}
		iso2 := ""
		if rec.Company.CountryISO2 != nil {
			iso2 = *rec.Company.CountryISO2
		}
		switch role {
		case models.RoleInsurer:
			info.InsurerName, info.InsurerISO2 = rec.Company.Name, iso2
		case models.RoleOwner:
			info.OwnerName, info.OwnerISO2 = rec.Company.Name, iso2
		case models.RoleManager:
			info.ManagerISO2 = iso2
		}
	}

	flagHistory, err := s.flags.History(ctx, ship.IMO)
	if err != nil {
		return info, err
	}
	if flag := parties.ApplicableFlag(flagHistory, departure, buffer); flag != nil {
		info.FlagISO2 = flag.FlagISO2
	}
	return info, nil
}

// priceAndFreeze runs the matcher for one scenario and freezes the row
func (s *TrackerService) priceAndFreeze(in trades.Input, scenario models.PricingScenario, prices []models.Price, asOf time.Time) models.ComputedTrade {
	cand := pricing.Candidate{
		PricingCommodity: in.PricingCommodity,
		Date:             in.DepartureDate,
		OriginISO2:       in.OriginISO2,
		DestinationISO2:  in.DestinationISO2,
	}
	if len(in.Vessels) > 0 {
		cand.InsurerISO2 = in.Vessels[0].InsurerISO2
		cand.OwnerISO2 = in.Vessels[0].OwnerISO2
	}
	if p := s.matcher.Match(prices, cand, scenario); p != nil {
		in.EURPerTonne = &p.EURPerTonne
	}
	return trades.Compute(in, scenario, asOf)
}

func (s *TrackerService) indexShipments(ctx context.Context, shipments []models.Shipment, ports map[string]models.Port) error {
	if s.elastic == nil {
		return nil
	}
	for i := range shipments {
		shipment := &shipments[i]
		ship, err := s.ships.GetByIMO(ctx, shipment.ShipIMO)
		if err != nil {
			return err
		}
		var depPort, arrPort *models.Port
		if shipment.Departure.PortID != nil {
			if p, ok := ports[*shipment.Departure.PortID]; ok {
				depPort = &p
			}
		}
		if shipment.Arrival != nil && shipment.Arrival.PortID != nil {
			if p, ok := ports[*shipment.Arrival.PortID]; ok {
				arrPort = &p
			}
		}
		if err := s.elastic.IndexShipment(ctx, shipment, ship, depPort, arrPort); err != nil {
			log.Warn().Err(err).Str("shipment_id", shipment.ID.String()).Msg("Failed to index shipment")
		}
	}
	return nil
}

// verifyIntegrity runs the property suite over the freshly committed state.
// Advisory findings are logged; blocking ones alert and fail the run.
func (s *TrackerService) verifyIntegrity(ctx context.Context) error {
	ds, err := s.integrityDataset(ctx)
	if err != nil {
		return err
	}

	violations := integrity.Run(*ds)
	for _, v := range violations {
		if v.Severity == integrity.SeverityBlocking {
			log.Error().Str("check", v.Check).Str("detail", v.Detail).Msg("Integrity violation")
		} else {
			log.Warn().Str("check", v.Check).Str("detail", v.Detail).Msg("Integrity advisory")
		}
	}

	if !integrity.HasBlocking(violations) {
		return nil
	}

	alert := messaging.Alert{
		Kind:    messaging.AlertIntegrityFailure,
		Subject: "pipeline",
		Detail:  fmt.Sprintf("%d integrity violations", len(violations)),
	}
	if err := s.notifier.Notify(ctx, alert); err != nil {
		log.Error().Err(err).Msg("Failed to send integrity alert")
	}
	return errors.New("blocking integrity violations found")
}

func (s *TrackerService) integrityDataset(ctx context.Context) (*integrity.Dataset, error) {
	shipments, err := s.shipments.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	departures, err := s.shipments.ListDepartures(ctx)
	if err != nil {
		return nil, err
	}
	attachments, err := s.berths.Attachments(ctx)
	if err != nil {
		return nil, err
	}
	chains, err := s.roles.InsurerChains(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err := s.window()
	if err != nil {
		return nil, err
	}
	computedRows, err := s.computed.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	overlandMonths, err := s.flowRepo.MonthsWithData(ctx)
	if err != nil {
		return nil, err
	}
	kplerRows, err := s.kplerRepo.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	anchor, err := time.Parse("2006-01-02", s.cfg.Counter.AnchorDate)
	if err != nil {
		return nil, errors.Wrap(err, "invalid counter anchor_date")
	}

	return &integrity.Dataset{
		Shipments:      shipments,
		Departures:     departures,
		ShipmentBerths: attachments,
		InsurerChains:  chains,
		ComputedTrades: computedRows,
		OverlandMonths: overlandMonths,
		MonthlyTotals:  monthlyTotals(computedRows, kplerRows),
		AnchorDate:     anchor,
		Now:            time.Now().UTC(),
	}, nil
}

// monthlyTotals compares in-house and third-party tonnage per month on the
// default scenario only, so each trade counts once
func monthlyTotals(computed []models.ComputedTrade, kpler []models.KplerTrade) map[string]integrity.MonthlyTotal {
	totals := make(map[string]integrity.MonthlyTotal)
	for _, row := range computed {
		if row.Scenario != models.ScenarioDefault {
			continue
		}
		t := totals[row.Month]
		t.OwnTonnes += row.Tonnes
		totals[row.Month] = t
	}
	for _, row := range kpler {
		if row.ValueTonne == nil {
			continue
		}
		month := row.DepartureUTC.UTC().Format("2006-01")
		t := totals[month]
		t.KplerTonnes += *row.ValueTonne
		totals[month] = t
	}
	return totals
}
