package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/models"
)

// positionPageSize is the upstream page limit per request
const positionPageSize = 500

// PositionProvider fetches AIS position tracks with windowed paging
type PositionProvider struct {
	client  *client
	baseURL string
}

// NewPositionProvider creates a position adapter
func NewPositionProvider(cfg config.ProvidersConfig) *PositionProvider {
	return &PositionProvider{client: newClient(cfg), baseURL: cfg.PositionURL}
}

type positionDTO struct {
	IMO              string    `json:"imo" validate:"required"`
	Timestamp        time.Time `json:"timestamp" validate:"required"`
	Lon              float64   `json:"lon"`
	Lat              float64   `json:"lat"`
	SpeedKnots       *float64  `json:"speed_knots"`
	NavigationStatus string    `json:"navigation_status"`
	Destination      string    `json:"destination"`
}

type positionResponse struct {
	Data    []positionDTO `json:"data"`
	HasMore bool          `json:"has_more"`
}

// FetchWindow retrieves all positions for one ship and window, following
// pages until the window is drained
func (p *PositionProvider) FetchWindow(ctx context.Context, imo string, from, to time.Time) ([]models.Position, error) {
	var out []models.Position
	cursor := from
	for {
		u := fmt.Sprintf("%s/positions?imo=%s&from=%s&to=%s&limit=%d",
			p.baseURL, url.QueryEscape(imo), dateParam(cursor), dateParam(to), positionPageSize)

		var resp positionResponse
		if err := p.client.getJSON(ctx, u, nil, &resp); err != nil {
			return nil, errors.Wrap(err, "failed to fetch positions")
		}

		for _, dto := range resp.Data {
			if err := validate.Struct(dto); err != nil {
				log.Warn().Err(err).Str("imo", imo).Msg("Dropping invalid position record")
				continue
			}
			out = append(out, models.Position{
				ID:               uuid.New(),
				ShipIMO:          dto.IMO,
				Timestamp:        dto.Timestamp.UTC(),
				Geometry:         fmt.Sprintf("POINT (%g %g)", dto.Lon, dto.Lat),
				SpeedKnots:       dto.SpeedKnots,
				NavigationStatus: dto.NavigationStatus,
				DestinationName:  dto.Destination,
			})
		}

		if !resp.HasMore || len(resp.Data) == 0 {
			return out, nil
		}
		last := resp.Data[len(resp.Data)-1].Timestamp.UTC()
		if !last.After(cursor) {
			return nil, errors.Errorf("position paging stalled at %s for %s", cursor, imo)
		}
		cursor = last
	}
}
