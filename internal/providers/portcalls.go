package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/voyage"
)

// CallRecorder logs completed upstream calls so covered windows are never
// queried twice
type CallRecorder interface {
	Record(ctx context.Context, call *models.ProviderCall) error
}

// PortcallProvider fetches portcall records. Two billing regimes exist
// upstream: the per-call endpoint for long windows and the per-record
// endpoint for short ones.
type PortcallProvider struct {
	client   *client
	baseURL  string
	apiKey   string
	recorder CallRecorder
}

// NewPortcallProvider creates a portcall adapter
func NewPortcallProvider(cfg config.ProvidersConfig, recorder CallRecorder) *PortcallProvider {
	return &PortcallProvider{
		client:   newClient(cfg),
		baseURL:  cfg.PortcallURL,
		apiKey:   cfg.PortcallKey,
		recorder: recorder,
	}
}

// portcallDTO is the upstream wire shape
type portcallDTO struct {
	IMO           string    `json:"imo" validate:"required"`
	MMSI          string    `json:"mmsi"`
	Timestamp     time.Time `json:"timestamp" validate:"required"`
	PortID        string    `json:"port_id"`
	Unlocode      string    `json:"unlocode"`
	MoveType      int       `json:"move_type" validate:"min=0,max=1"`
	LoadStatus    int       `json:"load_status" validate:"min=0,max=3"`
	PortOperation int       `json:"port_operation" validate:"min=0,max=4"`
	DraughtM      *float64  `json:"draught_m"`
}

type portcallResponse struct {
	Data []portcallDTO `json:"data"`
}

// Fetch retrieves portcalls for one subject and window under the given
// regime and logs the completed call
func (p *PortcallProvider) Fetch(ctx context.Context, req voyage.Request) ([]models.PortCall, error) {
	endpoint := "portcalls"
	if req.Regime == voyage.RegimeRecordBased {
		endpoint = "portcalls/records"
	}
	u := fmt.Sprintf("%s/%s?subject=%s&from=%s&to=%s",
		p.baseURL, endpoint,
		url.QueryEscape(req.ShipIMO), dateParam(req.From), dateParam(req.To))

	var resp portcallResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := p.client.getJSON(ctx, u, headers, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch portcalls")
	}

	calls := make([]models.PortCall, 0, len(resp.Data))
	for _, dto := range resp.Data {
		if err := validate.Struct(dto); err != nil {
			log.Warn().Err(err).Str("imo", dto.IMO).Msg("Dropping invalid portcall record")
			continue
		}
		calls = append(calls, mapPortcall(dto))
	}

	err := p.recorder.Record(ctx, &models.ProviderCall{
		ID:          uuid.New(),
		Provider:    "portcall",
		Subject:     req.ShipIMO,
		WindowFrom:  req.From,
		WindowTo:    req.To,
		Regime:      req.Regime,
		RecordCount: len(calls),
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to record portcall fetch")
	}
	return calls, nil
}

func mapPortcall(dto portcallDTO) models.PortCall {
	raw, _ := json.Marshal(dto)
	call := models.PortCall{
		ID:            uuid.New(),
		ShipIMO:       dto.IMO,
		Timestamp:     dto.Timestamp.UTC(),
		MoveType:      mapMoveType(dto.MoveType),
		LoadStatus:    mapLoadStatus(dto.LoadStatus),
		PortOperation: mapPortOperation(dto.PortOperation),
		DraughtM:      dto.DraughtM,
		RawPayload:    raw,
	}
	if dto.PortID != "" {
		call.PortID = &dto.PortID
	}
	if dto.Unlocode != "" {
		call.Unlocode = &dto.Unlocode
	}
	return call
}

func mapMoveType(code int) models.MoveType {
	if code == 1 {
		return models.MoveDeparture
	}
	return models.MoveArrival
}

func mapLoadStatus(code int) models.LoadStatus {
	switch code {
	case 1:
		return models.LoadStatusInBallast
	case 2:
		return models.LoadStatusPartiallyLaden
	case 3:
		return models.LoadStatusFullyLaden
	default:
		return models.LoadStatusNA
	}
}

func mapPortOperation(code int) models.PortOperation {
	switch code {
	case 1:
		return models.PortOpLoad
	case 2:
		return models.PortOpDischarge
	case 3:
		return models.PortOpBoth
	case 4:
		return models.PortOpNone
	default:
		return models.PortOpNA
	}
}
