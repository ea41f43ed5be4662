package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/models"
)

// KplerProvider fetches third-party trades and their zone dictionary
type KplerProvider struct {
	client  *client
	baseURL string
	apiKey  string
}

// NewKplerProvider creates a third-party trade adapter
func NewKplerProvider(cfg config.ProvidersConfig) *KplerProvider {
	return &KplerProvider{client: newClient(cfg), baseURL: cfg.KplerURL, apiKey: cfg.KplerKey}
}

type kplerTradeDTO struct {
	ID                string     `json:"id" validate:"required"`
	FlowID            string     `json:"flow_id"`
	ProductID         string     `json:"product_id" validate:"required"`
	Commodity         string     `json:"commodity"`
	OriginZoneID      string     `json:"origin_zone_id"`
	DestinationZoneID string     `json:"destination_zone_id"`
	DepartureUTC      time.Time  `json:"departure_utc" validate:"required"`
	ArrivalUTC        *time.Time `json:"arrival_utc"`
	VesselIMOs        []string   `json:"vessel_imos"`
	BuyerID           *string    `json:"buyer_id"`
	SellerID          *string    `json:"seller_id"`
	ValueTonne        *float64   `json:"value_tonne"`
	ValueM3           *float64   `json:"value_m3"`
	ValueEnergyMWh    *float64   `json:"value_energy_mwh"`
}

type kplerTradeResponse struct {
	Data []kplerTradeDTO `json:"data"`
}

// FetchTrades retrieves trades departing within the window
func (p *KplerProvider) FetchTrades(ctx context.Context, from, to time.Time) ([]models.KplerTrade, error) {
	u := fmt.Sprintf("%s/trades?from=%s&to=%s", p.baseURL, dayParam(from), dayParam(to))
	headers := map[string]string{"x-api-key": p.apiKey}

	var resp kplerTradeResponse
	if err := p.client.getJSON(ctx, u, headers, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch third-party trades")
	}

	out := make([]models.KplerTrade, 0, len(resp.Data))
	for _, dto := range resp.Data {
		if err := validate.Struct(dto); err != nil {
			log.Warn().Err(err).Str("trade_id", dto.ID).Msg("Dropping invalid third-party trade")
			continue
		}
		out = append(out, models.KplerTrade{
			ID:                dto.ID,
			FlowID:            dto.FlowID,
			ProductID:         dto.ProductID,
			Commodity:         models.Commodity(dto.Commodity),
			OriginZoneID:      dto.OriginZoneID,
			DestinationZoneID: dto.DestinationZoneID,
			DepartureUTC:      dto.DepartureUTC.UTC(),
			ArrivalUTC:        dto.ArrivalUTC,
			VesselIMOs:        models.StringArray(dto.VesselIMOs),
			BuyerID:           dto.BuyerID,
			SellerID:          dto.SellerID,
			ValueTonne:        dto.ValueTonne,
			ValueM3:           dto.ValueM3,
			ValueEnergyMWh:    dto.ValueEnergyMWh,
		})
	}
	return out, nil
}

type kplerZoneDTO struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name"`
	ISO2   string `json:"iso2"`
	Region string `json:"region"`
}

type kplerZoneResponse struct {
	Data []kplerZoneDTO `json:"data"`
}

// FetchZones retrieves the zone dictionary used to resolve trade endpoints
func (p *KplerProvider) FetchZones(ctx context.Context) ([]models.Zone, error) {
	u := p.baseURL + "/zones"
	headers := map[string]string{"x-api-key": p.apiKey}

	var resp kplerZoneResponse
	if err := p.client.getJSON(ctx, u, headers, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch zones")
	}

	out := make([]models.Zone, 0, len(resp.Data))
	for _, dto := range resp.Data {
		if err := validate.Struct(dto); err != nil {
			log.Warn().Err(err).Str("zone_id", dto.ID).Msg("Dropping invalid zone")
			continue
		}
		out = append(out, models.Zone{ID: dto.ID, Name: dto.Name, ISO2: dto.ISO2, Region: dto.Region})
	}
	return out, nil
}
