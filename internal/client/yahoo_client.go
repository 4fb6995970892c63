package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"

	"go.uber.org/zap"
)

const (
	YahooChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

	chartTimeout = 10 * time.Second
)

// YahooClient handles communication with the Yahoo Finance chart API, the
// secondary candle provider. Like AlpacaClient it is stateless and never
// retries.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewYahooClient creates a new Yahoo chart API client.
func NewYahooClient(m *metrics.Metrics, logger *zap.Logger) *YahooClient {
	return &YahooClient{
		baseURL: YahooChartBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

// SetBaseURL overrides the chart endpoint. Used in tests.
func (c *YahooClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Yahoo's chart response is columnar: parallel arrays indexed by
// timestamp, any of which may hold nulls.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
			Events struct {
				Splits map[string]struct {
					Date        int64  `json:"date"`
					Numerator   int64  `json:"numerator"`
					Denominator int64  `json:"denominator"`
					SplitRatio  string `json:"splitRatio"`
				} `json:"splits"`
			} `json:"events"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// ChartResult is one parsed Yahoo chart: row-wise candles, unadjusted,
// plus any split events reported for the range.
type ChartResult struct {
	Candles []model.Candle
	Splits  []model.SplitEvent
}

// GetChart retrieves candles for a symbol at the given Yahoo interval
// ("1m", "1d", "1wk", ...) over the given range ("5d", "1y", ...), with
// split events included. Rows where any OHLC field is null are skipped.
func (c *YahooClient) GetChart(ctx context.Context, symbol, interval, chartRange string) (*ChartResult, error) {
	params := url.Values{}
	params.Add("interval", interval)
	params.Add("range", chartRange)
	params.Add("events", "splits")

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())
	c.logger.Debug("Calling Yahoo chart API", zap.String("url", reqURL))

	ctx, cancel := context.WithTimeout(ctx, chartTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("yahoo", string(model.ErrKindNetwork)).Inc()
		return nil, model.NewProviderError("yahoo", model.ErrKindNetwork, "failed to create request", err)
	}
	// Yahoo rejects requests without a browser-ish user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Yahoo chart request failed", zap.String("symbol", symbol), zap.Error(err))
		c.metrics.ProviderRequests.WithLabelValues("yahoo", string(model.ErrKindNetwork)).Inc()
		return nil, model.NewProviderError("yahoo", model.ErrKindNetwork, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Yahoo chart API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("symbol", symbol))
		kind := classifyStatus(resp.StatusCode)
		c.metrics.ProviderRequests.WithLabelValues("yahoo", string(kind)).Inc()
		return nil, model.NewProviderError("yahoo", kind,
			fmt.Sprintf("status code %d", resp.StatusCode), nil)
	}

	var out yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.ProviderRequests.WithLabelValues("yahoo", string(model.ErrKindMalformed)).Inc()
		return nil, model.NewProviderError("yahoo", model.ErrKindMalformed, "failed to decode chart", err)
	}

	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		c.metrics.ProviderRequests.WithLabelValues("yahoo", string(model.ErrKindMalformed)).Inc()
		return nil, model.NewProviderError("yahoo", model.ErrKindMalformed,
			fmt.Sprintf("empty chart result for %s", symbol), nil)
	}
	c.metrics.ProviderRequests.WithLabelValues("yahoo", "success").Inc()

	result := out.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		// Yahoo pads holiday/halt rows with nulls; skip the whole row.
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		var volume float64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		candles = append(candles, model.Candle{
			Timestamp: ts,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    volume,
		})
	}

	splits := make([]model.SplitEvent, 0, len(result.Events.Splits))
	for _, s := range result.Events.Splits {
		if s.Denominator == 0 || s.Numerator == 0 {
			c.logger.Warn("Skipping malformed split event",
				zap.String("symbol", symbol),
				zap.String("ratio", s.SplitRatio))
			continue
		}
		// Factor converts pre-split prices onto the post-split scale.
		splits = append(splits, model.SplitEvent{
			Timestamp: s.Date,
			Factor:    float64(s.Denominator) / float64(s.Numerator),
		})
	}

	return &ChartResult{Candles: candles, Splits: splits}, nil
}
