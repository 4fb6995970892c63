package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/model"
)

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewYahooClient(testMetrics(), zap.NewNop())
	c.SetBaseURL(srv.URL)
	return c
}

func TestYahooClient_ParsesColumnarChart(t *testing.T) {
	c := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("expected interval=1d, got %q", got)
		}
		w.Write([]byte(`{"chart": {"result": [{
			"timestamp": [1672704000, 1672790400, 1672876800],
			"indicators": {"quote": [{
				"open":   [130.28, null, 126.89],
				"high":   [130.90, 128.0, 128.66],
				"low":    [124.17, 125.0, 125.08],
				"close":  [125.07, 126.5, 126.36],
				"volume": [112117471, null, 89113633]
			}]},
			"events": {"splits": {"1661140800": {"date": 1661140800, "numerator": 4, "denominator": 1, "splitRatio": "4:1"}}}
		}], "error": null}}`))
	})

	result, err := c.GetChart(context.Background(), "AAPL", "1d", "5d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The null-open row must be skipped entirely.
	if len(result.Candles) != 2 {
		t.Fatalf("expected 2 candles after null skip, got %d", len(result.Candles))
	}
	if result.Candles[0].Timestamp != 1672704000 || result.Candles[1].Timestamp != 1672876800 {
		t.Errorf("unexpected timestamps %v %v", result.Candles[0].Timestamp, result.Candles[1].Timestamp)
	}
	// Null volume alone keeps the row, with volume zeroed.
	if result.Candles[1].Volume != 89113633 {
		t.Errorf("unexpected volume %v", result.Candles[1].Volume)
	}

	if len(result.Splits) != 1 {
		t.Fatalf("expected 1 split event, got %d", len(result.Splits))
	}
	if result.Splits[0].Factor != 0.25 {
		t.Errorf("4:1 split should yield factor 0.25, got %v", result.Splits[0].Factor)
	}
}

func TestYahooClient_EmptyResultIsMalformed(t *testing.T) {
	c := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": null}}`))
	})

	_, err := c.GetChart(context.Background(), "NOPE", "1d", "5d")
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Kind != model.ErrKindMalformed {
		t.Fatalf("expected malformed provider error, got %v", err)
	}
	if pe.Provider != "yahoo" {
		t.Errorf("expected provider yahoo, got %s", pe.Provider)
	}
}

func TestYahooClient_StatusErrors(t *testing.T) {
	c := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetChart(context.Background(), "AAPL", "1d", "5d")
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Kind != model.ErrKindRateLimit {
		t.Fatalf("expected rateLimit error, got %v", err)
	}
}
