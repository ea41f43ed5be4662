package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/fossiltrack/config"
	"example.com/fossiltrack/internal/models"
	"example.com/fossiltrack/internal/voyage"
)

func testProviderConfig(url string) config.ProvidersConfig {
	return config.ProvidersConfig{
		PortcallURL:      url,
		PositionURL:      url,
		PipelineFlowURL:  url,
		KplerURL:         url,
		CurrencyURL:      url,
		RegistryURL:      url,
		RegistryAccounts: []string{"acct-1", "acct-2"},
		RequestTimeout:   5 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
	}
}

type recorderStub struct {
	calls []models.ProviderCall
}

func (r *recorderStub) Record(_ context.Context, call *models.ProviderCall) error {
	r.calls = append(r.calls, *call)
	return nil
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newClient(testProviderConfig(srv.URL))
	var out portcallResponse
	err := c.getJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClientReportsRecoverableAfterRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(testProviderConfig(srv.URL))
	var out portcallResponse
	err := c.getJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRecoverable))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(testProviderConfig(srv.URL))
	var out portcallResponse
	err := c.getJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestPortcallFetchMapsCodesAndLogsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "9700001", r.URL.Query().Get("subject"))
		w.Write([]byte(`{"data":[
			{"imo":"9700001","timestamp":"2023-03-01T10:00:00Z","port_id":"RUNVS","move_type":1,"load_status":3,"port_operation":1,"draught_m":14.2},
			{"imo":"","timestamp":"2023-03-01T11:00:00Z","move_type":0}
		]}`))
	}))
	defer srv.Close()

	rec := &recorderStub{}
	p := NewPortcallProvider(testProviderConfig(srv.URL), rec)

	calls, err := p.Fetch(context.Background(), voyage.Request{
		ShipIMO: "9700001",
		From:    time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC),
		Regime:  voyage.RegimeCallBased,
	})
	require.NoError(t, err)

	// The record missing its IMO is dropped at the boundary
	require.Len(t, calls, 1)
	require.Equal(t, models.MoveDeparture, calls[0].MoveType)
	require.Equal(t, models.LoadStatusFullyLaden, calls[0].LoadStatus)
	require.Equal(t, models.PortOpLoad, calls[0].PortOperation)
	require.Equal(t, "RUNVS", *calls[0].PortID)

	require.Len(t, rec.calls, 1)
	require.Equal(t, "portcall", rec.calls[0].Provider)
	require.Equal(t, "9700001", rec.calls[0].Subject)
	require.Equal(t, voyage.RegimeCallBased, rec.calls[0].Regime)
	require.Equal(t, 1, rec.calls[0].RecordCount)
}

func TestRegistryRotatesAccountsOnLockout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer acct-1" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"imo":"9700001","flag_iso2":"LR","records":[
			{"company_name":"Sovfracht","provider_imo":"C100","role":"owner","date_from":"2020-01-01T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	s, err := NewRegistryScraper(testProviderConfig(srv.URL))
	require.NoError(t, err)

	profile, err := s.FetchProfile(context.Background(), "9700001")
	require.NoError(t, err)
	require.Equal(t, "LR", profile.FlagISO2)
	require.Len(t, profile.Records, 1)
	require.Equal(t, "Sovfracht", profile.Records[0].CompanyName)
}

func TestRegistryExhaustedWhenAllAccountsLocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewRegistryScraper(testProviderConfig(srv.URL))
	require.NoError(t, err)

	_, err = s.FetchProfile(context.Background(), "9700001")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrExhausted))
}

func TestPositionsFollowPages(t *testing.T) {
	var page int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&page, 1) == 1 {
			w.Write([]byte(`{"data":[
				{"imo":"9700001","timestamp":"2023-03-01T10:00:00Z","lon":37.8,"lat":44.7,"speed_knots":0.2},
				{"imo":"9700001","timestamp":"2023-03-01T11:00:00Z","lon":37.9,"lat":44.7}
			],"has_more":true}`))
			return
		}
		w.Write([]byte(`{"data":[
			{"imo":"9700001","timestamp":"2023-03-01T12:00:00Z","lon":38.0,"lat":44.6}
		],"has_more":false}`))
	}))
	defer srv.Close()

	p := NewPositionProvider(testProviderConfig(srv.URL))
	positions, err := p.FetchWindow(context.Background(), "9700001",
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, positions, 3)
	require.Equal(t, "POINT (37.8 44.7)", positions[0].Geometry)
	require.EqualValues(t, 2, atomic.LoadInt32(&page))
}

func TestFlowReadingsParseAndValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"operator_key":"op-a","point_key":"velke","direction_key":"exit","day":"2023-03-01","origin_iso2":"RU","destination_iso2":"SK","commodity":"natural_gas","mwh":266.0,"confirmed":true},
			{"operator_key":"op-a","point_key":"","direction_key":"exit","day":"2023-03-01","origin_iso2":"RU","destination_iso2":"SK","commodity":"natural_gas","tonnes":5}
		]}`))
	}))
	defer srv.Close()

	p := NewFlowProvider(testProviderConfig(srv.URL))
	readings, err := p.FetchReadings(context.Background(),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Reading without a point key fails validation and is dropped
	require.Len(t, readings, 1)
	require.Equal(t, "velke", readings[0].PointKey)
	require.Equal(t, models.CommodityNaturalGas, readings[0].Commodity)
	require.NotNil(t, readings[0].MWh)
	require.True(t, readings[0].Confirmed)
}

func TestCurrencyRangeFlattensDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "EUR", r.URL.Query().Get("base"))
		w.Write([]byte(`{"rates":{
			"2023-03-01":{"USD":1.08,"GBP":0.88},
			"2023-03-02":{"USD":1.09,"GBP":0.89}
		}}`))
	}))
	defer srv.Close()

	p := NewCurrencyProvider(testProviderConfig(srv.URL))
	rates, err := p.FetchRange(context.Background(),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rates, 4)

	byKey := map[string]float64{}
	for _, r := range rates {
		byKey[r.Date.Format("2006-01-02")+"/"+r.Currency] = r.PerEUR
	}
	require.Equal(t, 1.08, byKey["2023-03-01/USD"])
	require.Equal(t, 0.89, byKey["2023-03-02/GBP"])
}

func TestKplerTradesMapFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"data":[
			{"id":"T1","flow_id":"F1","product_id":"crude","commodity":"crude_oil","origin_zone_id":"Z-NVS","destination_zone_id":"Z-MUN","departure_utc":"2023-03-01T10:00:00Z","vessel_imos":["9700001"],"value_tonne":76000}
		]}`))
	}))
	defer srv.Close()

	cfg := testProviderConfig(srv.URL)
	cfg.KplerKey = "test-key"
	p := NewKplerProvider(cfg)

	rows, err := p.FetchTrades(context.Background(),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "T1", rows[0].ID)
	require.Equal(t, models.CommodityCrudeOil, rows[0].Commodity)
	require.Equal(t, models.StringArray{"9700001"}, rows[0].VesselIMOs)
	require.Equal(t, 76000.0, *rows[0].ValueTonne)
}
