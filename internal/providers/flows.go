package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/flows"
	"example.com/fossiltrack/internal/models"
)

// FlowProvider fetches physical overland flow readings
type FlowProvider struct {
	client  *client
	baseURL string
}

// NewFlowProvider creates a pipeline-flow adapter
func NewFlowProvider(cfg config.ProvidersConfig) *FlowProvider {
	return &FlowProvider{client: newClient(cfg), baseURL: cfg.PipelineFlowURL}
}

type flowReadingDTO struct {
	OperatorKey     string   `json:"operator_key" validate:"required"`
	PointKey        string   `json:"point_key" validate:"required"`
	DirectionKey    string   `json:"direction_key" validate:"required"`
	Day             string   `json:"day" validate:"required"`
	OriginISO2      string   `json:"origin_iso2" validate:"len=2"`
	DestinationISO2 string   `json:"destination_iso2" validate:"len=2"`
	Commodity       string   `json:"commodity" validate:"required"`
	Tonnes          *float64 `json:"tonnes"`
	MWh             *float64 `json:"mwh"`
	Confirmed       bool     `json:"confirmed"`
	PipeInPipe      bool     `json:"pipe_in_pipe"`
}

type flowResponse struct {
	Data []flowReadingDTO `json:"data"`
}

// FetchReadings retrieves flow readings for a date window
func (p *FlowProvider) FetchReadings(ctx context.Context, from, to time.Time) ([]flows.Reading, error) {
	u := fmt.Sprintf("%s/flows?from=%s&to=%s", p.baseURL, dayParam(from), dayParam(to))

	var resp flowResponse
	if err := p.client.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch flow readings")
	}

	out := make([]flows.Reading, 0, len(resp.Data))
	for _, dto := range resp.Data {
		if err := validate.Struct(dto); err != nil {
			log.Warn().Err(err).Str("point", dto.PointKey).Msg("Dropping invalid flow reading")
			continue
		}
		day, err := time.Parse("2006-01-02", dto.Day)
		if err != nil {
			log.Warn().Str("day", dto.Day).Msg("Dropping flow reading with unparseable day")
			continue
		}
		out = append(out, flows.Reading{
			OperatorKey:     dto.OperatorKey,
			PointKey:        dto.PointKey,
			DirectionKey:    dto.DirectionKey,
			Date:            day.UTC(),
			OriginISO2:      dto.OriginISO2,
			DestinationISO2: dto.DestinationISO2,
			Commodity:       models.Commodity(dto.Commodity),
			Tonnes:          dto.Tonnes,
			MWh:             dto.MWh,
			Confirmed:       dto.Confirmed,
			PipeInPipe:      dto.PipeInPipe,
		})
	}
	return out, nil
}
