package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestAlpaca(t *testing.T, handler http.HandlerFunc) (*AlpacaClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewAlpacaClient("key", "secret", testMetrics(), zap.NewNop())
	c.SetBaseURLs(srv.URL, srv.URL)
	return c, srv
}

func TestAlpacaClient_GetBars(t *testing.T) {
	c, _ := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("timeframe"); got != "1Day" {
			t.Errorf("expected timeframe=1Day, got %q", got)
		}
		w.Write([]byte(`{
			"symbol": "AAPL",
			"bars": [
				{"t": "2023-01-03T05:00:00Z", "o": 130.28, "h": 130.9, "l": 124.17, "c": 125.07, "v": 112117471},
				{"t": "2023-01-04T05:00:00Z", "o": 126.89, "h": 128.66, "l": 125.08, "c": 126.36, "v": 89113633}
			]
		}`))
	})

	bars, err := c.GetBars(context.Background(), "AAPL", "1Day", nil, nil, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 125.07 {
		t.Errorf("expected first close 125.07, got %v", bars[0].Close)
	}
	if bars[0].Timestamp >= bars[1].Timestamp {
		t.Error("expected ascending timestamps")
	}
}

func TestAlpacaClient_GetLatestTrade(t *testing.T) {
	c, _ := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "AAPL", "trade": {"t": "2023-06-01T19:59:59.898542039Z", "p": 180.09, "s": 200}}`))
	})

	trade, err := c.GetLatestTrade(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Price != 180.09 || trade.Size != 200 {
		t.Errorf("unexpected trade %+v", trade)
	}
}

func TestAlpacaClient_GetTradesNewestFirst(t *testing.T) {
	c, _ := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sort"); got != "desc" {
			t.Errorf("expected sort=desc, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("expected limit=1, got %q", got)
		}
		w.Write([]byte(`{"trades": [{"t": "2023-06-01T19:59:59Z", "p": 180.09, "s": 200}]}`))
	})

	start := time.Date(2023, 5, 31, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	trades, err := c.GetTrades(context.Background(), "AAPL", start, end, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 || trades[0].Price != 180.09 {
		t.Fatalf("unexpected trades %+v", trades)
	}
}

func TestAlpacaClient_CountsProviderRequests(t *testing.T) {
	m := testMetrics()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "AAPL", "trade": {"t": "2023-06-01T19:59:59Z", "p": 180.09, "s": 200}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewAlpacaClient("key", "secret", m, zap.NewNop())
	c.SetBaseURLs(srv.URL, srv.URL)

	if _, err := c.GetLatestTrade(context.Background(), "AAPL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(m.ProviderRequests.WithLabelValues("alpaca", "success")); got != 1 {
		t.Errorf("expected 1 success request counted, got %v", got)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(failing.Close)
	c.SetBaseURLs(failing.URL, failing.URL)

	if _, err := c.GetLatestTrade(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected rate limit error")
	}
	if got := testutil.ToFloat64(m.ProviderRequests.WithLabelValues("alpaca", "rateLimit")); got != 1 {
		t.Errorf("expected 1 rateLimit request counted, got %v", got)
	}
}

func TestAlpacaClient_ErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		kind   model.ErrorKind
	}{
		{http.StatusUnauthorized, model.ErrKindAuth},
		{http.StatusForbidden, model.ErrKindAuth},
		{http.StatusNotFound, model.ErrKindNotFound},
		{http.StatusTooManyRequests, model.ErrKindRateLimit},
		{http.StatusInternalServerError, model.ErrKindNetwork},
	}

	for _, tc := range cases {
		c, _ := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})

		_, err := c.GetLatestTrade(context.Background(), "AAPL")
		var pe *model.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("status %d: expected ProviderError, got %v", tc.status, err)
		}
		if pe.Kind != tc.kind {
			t.Errorf("status %d: expected kind %s, got %s", tc.status, tc.kind, pe.Kind)
		}
		if pe.Provider != "alpaca" {
			t.Errorf("expected provider alpaca, got %s", pe.Provider)
		}
	}
}

func TestAlpacaClient_MissingCredentials(t *testing.T) {
	c := NewAlpacaClient("", "", testMetrics(), zap.NewNop())

	_, err := c.GetLatestTrade(context.Background(), "AAPL")
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Kind != model.ErrKindAuth {
		t.Fatalf("expected auth error without credentials, got %v", err)
	}
}

func TestAlpacaClient_MalformedResponse(t *testing.T) {
	c, _ := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.GetLatestTrade(context.Background(), "AAPL")
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Kind != model.ErrKindMalformed {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestAlpacaClient_GetAsset(t *testing.T) {
	c, _ := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "AAPL", "name": "Apple Inc. Common Stock", "exchange": "NASDAQ", "class": "us_equity", "tradable": true}`))
	})

	asset, err := c.GetAsset(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Name != "Apple Inc. Common Stock" || !asset.Tradable {
		t.Errorf("unexpected asset %+v", asset)
	}
}
