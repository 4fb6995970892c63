package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"

	"go.uber.org/zap"
)

const (
	AlpacaDataBaseURL   = "https://data.alpaca.markets/v2"
	AlpacaBrokerBaseURL = "https://api.alpaca.markets/v2"
	MaxBarsLimit        = 10000

	// Per-call timeouts: quote lookups are on the hot path and get the
	// shortest budget, historical backfills the longest.
	quoteTimeout = 5 * time.Second
	assetTimeout = 10 * time.Second
	barsTimeout  = 15 * time.Second
)

// AlpacaClient handles communication with the Alpaca data and broker APIs.
// Every call is a single stateless request: errors are normalized into
// model.ProviderError and returned without retries, leaving fallback
// decisions to the caller.
type AlpacaClient struct {
	dataURL    string
	brokerURL  string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewAlpacaClient creates a new Alpaca API client.
func NewAlpacaClient(apiKey, apiSecret string, m *metrics.Metrics, logger *zap.Logger) *AlpacaClient {
	return &AlpacaClient{
		dataURL:   AlpacaDataBaseURL,
		brokerURL: AlpacaBrokerBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

// SetBaseURLs overrides the API endpoints. Used for paper endpoints and in
// tests.
func (c *AlpacaClient) SetBaseURLs(dataURL, brokerURL string) {
	if dataURL != "" {
		c.dataURL = dataURL
	}
	if brokerURL != "" {
		c.brokerURL = brokerURL
	}
}

// HasCredentials reports whether API credentials are configured.
func (c *AlpacaClient) HasCredentials() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

func (c *AlpacaClient) get(ctx context.Context, reqURL string, timeout time.Duration, out interface{}) error {
	if !c.HasCredentials() {
		c.metrics.ProviderRequests.WithLabelValues("alpaca", string(model.ErrKindAuth)).Inc()
		return model.NewProviderError("alpaca", model.ErrKindAuth, "missing API credentials", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("alpaca", string(model.ErrKindNetwork)).Inc()
		return model.NewProviderError("alpaca", model.ErrKindNetwork, "failed to create request", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Alpaca request failed", zap.String("url", reqURL), zap.Error(err))
		c.metrics.ProviderRequests.WithLabelValues("alpaca", string(model.ErrKindNetwork)).Inc()
		return model.NewProviderError("alpaca", model.ErrKindNetwork, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		c.logger.Warn("Alpaca API error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("url", reqURL))
		c.metrics.ProviderRequests.WithLabelValues("alpaca", string(kind)).Inc()
		return model.NewProviderError("alpaca", kind,
			fmt.Sprintf("status code %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("Failed to decode Alpaca response", zap.String("url", reqURL), zap.Error(err))
		c.metrics.ProviderRequests.WithLabelValues("alpaca", string(model.ErrKindMalformed)).Inc()
		return model.NewProviderError("alpaca", model.ErrKindMalformed, "failed to decode response", err)
	}

	c.metrics.ProviderRequests.WithLabelValues("alpaca", "success").Inc()
	return nil
}

func classifyStatus(status int) model.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.ErrKindAuth
	case status == http.StatusTooManyRequests:
		return model.ErrKindRateLimit
	case status == http.StatusNotFound:
		return model.ErrKindNotFound
	default:
		return model.ErrKindNetwork
	}
}

type alpacaTrade struct {
	Timestamp time.Time `json:"t"`
	Price     float64   `json:"p"`
	Size      float64   `json:"s"`
}

type alpacaLatestTradeResponse struct {
	Symbol string      `json:"symbol"`
	Trade  alpacaTrade `json:"trade"`
}

// GetLatestTrade retrieves the most recent trade for a symbol.
func (c *AlpacaClient) GetLatestTrade(ctx context.Context, symbol string) (*model.TradePoint, error) {
	reqURL := fmt.Sprintf("%s/stocks/%s/trades/latest", c.dataURL, url.PathEscape(symbol))

	var out alpacaLatestTradeResponse
	if err := c.get(ctx, reqURL, quoteTimeout, &out); err != nil {
		return nil, err
	}

	if out.Trade.Price <= 0 {
		return nil, model.NewProviderError("alpaca", model.ErrKindMalformed,
			fmt.Sprintf("no trade price for %s", symbol), nil)
	}

	return &model.TradePoint{
		Symbol:    symbol,
		Price:     out.Trade.Price,
		Size:      out.Trade.Size,
		Timestamp: out.Trade.Timestamp,
	}, nil
}

type alpacaTradesResponse struct {
	Trades []alpacaTrade `json:"trades"`
}

// GetTrades retrieves up to limit trades for a symbol within [start, end],
// newest first. The provider pages ascending by default, which would make
// a capped fetch return the window's earliest prints; descending order
// keeps trades[0] the window's final trade.
func (c *AlpacaClient) GetTrades(ctx context.Context, symbol string, start, end time.Time, limit int) ([]model.TradePoint, error) {
	params := url.Values{}
	params.Add("start", start.UTC().Format(time.RFC3339))
	params.Add("end", end.UTC().Format(time.RFC3339))
	params.Add("limit", strconv.Itoa(limit))
	params.Add("sort", "desc")

	reqURL := fmt.Sprintf("%s/stocks/%s/trades?%s", c.dataURL, url.PathEscape(symbol), params.Encode())

	var out alpacaTradesResponse
	if err := c.get(ctx, reqURL, quoteTimeout, &out); err != nil {
		return nil, err
	}

	trades := make([]model.TradePoint, 0, len(out.Trades))
	for _, t := range out.Trades {
		trades = append(trades, model.TradePoint{
			Symbol:    symbol,
			Price:     t.Price,
			Size:      t.Size,
			Timestamp: t.Timestamp,
		})
	}
	return trades, nil
}

type alpacaBar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

type alpacaBarsResponse struct {
	Symbol string      `json:"symbol"`
	Bars   []alpacaBar `json:"bars"`
}

// GetBars retrieves candle bars for a symbol at the given native Alpaca
// interval ("1Min", "1Day", ...). Either a start/end range or a bar count
// limit can be given; when both are nil/zero the provider default applies.
func (c *AlpacaClient) GetBars(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]model.Candle, error) {
	if limit > MaxBarsLimit {
		limit = MaxBarsLimit
	}

	params := url.Values{}
	params.Add("timeframe", interval)
	params.Add("adjustment", "split")
	if limit > 0 {
		params.Add("limit", strconv.Itoa(limit))
	}
	if start != nil {
		params.Add("start", start.UTC().Format(time.RFC3339))
	}
	if end != nil {
		params.Add("end", end.UTC().Format(time.RFC3339))
	}

	reqURL := fmt.Sprintf("%s/stocks/%s/bars?%s", c.dataURL, url.PathEscape(symbol), params.Encode())
	c.logger.Debug("Calling Alpaca bars API", zap.String("url", reqURL))

	var out alpacaBarsResponse
	if err := c.get(ctx, reqURL, barsTimeout, &out); err != nil {
		return nil, err
	}

	if len(out.Bars) == 0 {
		c.logger.Warn("Alpaca returned empty bars",
			zap.String("symbol", symbol),
			zap.String("interval", interval))
	}

	candles := make([]model.Candle, 0, len(out.Bars))
	for _, b := range out.Bars {
		if b.Timestamp.IsZero() {
			continue
		}
		candles = append(candles, model.Candle{
			Timestamp: b.Timestamp.Unix(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	return candles, nil
}

type alpacaAsset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Class    string `json:"class"`
	Tradable bool   `json:"tradable"`
	Status   string `json:"status"`
}

// GetAsset retrieves metadata for one symbol from the broker API.
func (c *AlpacaClient) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	reqURL := fmt.Sprintf("%s/assets/%s", c.brokerURL, url.PathEscape(symbol))

	var out alpacaAsset
	if err := c.get(ctx, reqURL, assetTimeout, &out); err != nil {
		return nil, err
	}

	if out.Symbol == "" {
		return nil, model.NewProviderError("alpaca", model.ErrKindMalformed,
			fmt.Sprintf("empty asset for %s", symbol), nil)
	}

	return &model.Asset{
		Symbol:   out.Symbol,
		Name:     out.Name,
		Exchange: out.Exchange,
		Class:    out.Class,
		Tradable: out.Tradable,
	}, nil
}

// GetActiveAssets retrieves all active US equity assets. The result backs
// the symbol search index and is cached by the caller.
func (c *AlpacaClient) GetActiveAssets(ctx context.Context) ([]model.Asset, error) {
	params := url.Values{}
	params.Add("status", "active")
	params.Add("asset_class", "us_equity")

	reqURL := fmt.Sprintf("%s/assets?%s", c.brokerURL, params.Encode())

	var out []alpacaAsset
	if err := c.get(ctx, reqURL, barsTimeout, &out); err != nil {
		return nil, err
	}

	assets := make([]model.Asset, 0, len(out))
	for _, a := range out {
		if a.Symbol == "" {
			continue
		}
		assets = append(assets, model.Asset{
			Symbol:   a.Symbol,
			Name:     a.Name,
			Exchange: a.Exchange,
			Class:    a.Class,
			Tradable: a.Tradable,
		})
	}
	return assets, nil
}

// IsNotFound reports whether err is a provider notFound error.
func IsNotFound(err error) bool {
	var pe *model.ProviderError
	return errors.As(err, &pe) && pe.Kind == model.ErrKindNotFound
}
