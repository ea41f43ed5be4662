package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/models"
)

// trackedCurrencies is the fixed list fetched daily. EUR is the base and
// never fetched.
var trackedCurrencies = []string{"USD", "GBP", "CNY", "INR", "TRY", "JPY", "KRW"}

// CurrencyProvider fetches daily EUR-based exchange rates
type CurrencyProvider struct {
	client  *client
	baseURL string
}

// NewCurrencyProvider creates a currency-rate adapter
func NewCurrencyProvider(cfg config.ProvidersConfig) *CurrencyProvider {
	return &CurrencyProvider{client: newClient(cfg), baseURL: cfg.CurrencyURL}
}

type currencyResponse struct {
	Rates map[string]map[string]float64 `json:"rates"`
}

// FetchRange retrieves per-EUR rates for each day in the window
func (p *CurrencyProvider) FetchRange(ctx context.Context, from, to time.Time) ([]models.CurrencyRate, error) {
	u := fmt.Sprintf("%s/timeseries?base=EUR&symbols=%s&start_date=%s&end_date=%s",
		p.baseURL, strings.Join(trackedCurrencies, ","), dayParam(from), dayParam(to))

	var resp currencyResponse
	if err := p.client.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch currency rates")
	}

	var out []models.CurrencyRate
	for day, rates := range resp.Rates {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, errors.Wrapf(err, "unparseable rate day %q", day)
		}
		for currency, perEUR := range rates {
			out = append(out, models.CurrencyRate{
				ID:       uuid.New(),
				Date:     date.UTC(),
				Currency: currency,
				PerEUR:   perEUR,
			})
		}
	}
	return out, nil
}
