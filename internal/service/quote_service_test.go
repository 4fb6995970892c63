package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/client"
	"github.com/yourorg/market-data-service/internal/model"
)

type fakeProvider struct {
	latestTrade    *model.TradePoint
	latestTradeErr error
	tradeCalls     int

	bars     []model.Candle
	barsErr  error
	barCalls int

	trades      []model.TradePoint
	tradesErr   error
	tradesLimit int
}

func (f *fakeProvider) GetLatestTrade(ctx context.Context, symbol string) (*model.TradePoint, error) {
	f.tradeCalls++
	if f.latestTradeErr != nil {
		return nil, f.latestTradeErr
	}
	return f.latestTrade, nil
}

func (f *fakeProvider) GetTrades(ctx context.Context, symbol string, start, end time.Time, limit int) ([]model.TradePoint, error) {
	f.tradesLimit = limit
	if f.tradesErr != nil {
		return nil, f.tradesErr
	}
	return f.trades, nil
}

func (f *fakeProvider) GetBars(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]model.Candle, error) {
	f.barCalls++
	if f.barsErr != nil {
		return nil, f.barsErr
	}
	return f.bars, nil
}

type fakeCharts struct {
	result *client.ChartResult
	err    error
	calls  int
}

func (f *fakeCharts) GetChart(ctx context.Context, symbol, interval, chartRange string) (*client.ChartResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStream struct{ live bool }

func (f *fakeStream) Live() bool { return f.live }

type fakeAssetProvider struct {
	asset  *model.Asset
	assets []model.Asset
	err    error
}

func (f *fakeAssetProvider) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.asset, nil
}

func (f *fakeAssetProvider) GetActiveAssets(ctx context.Context) ([]model.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assets, nil
}

func newTestAssetService(p AssetProvider) *AssetService {
	return NewAssetService(p, cache.NewNameCache(), cache.NewTTLCache(time.Minute), testMetrics(), zap.NewNop())
}

func newTestQuoteService(p MarketDataProvider, ch ChartProvider, live *cache.LiveCache, stream StreamStatus) *QuoteService {
	assets := newTestAssetService(&fakeAssetProvider{err: errors.New("no metadata")})
	s := NewQuoteService(p, ch, assets, live, stream, []string{"AAPL", "TSLA"}, testMetrics(), zap.NewNop())
	s.SetGraceWait(5 * time.Millisecond)
	return s
}

func TestResolveQuote_UsesLiveCacheForWatchedSymbol(t *testing.T) {
	tradeTime := time.Date(2024, 2, 1, 15, 30, 0, 0, time.UTC)
	live := cache.NewLiveCache()
	live.UpdateTrade("AAPL", model.LiveTrade{Price: 187.5, Size: 300, Timestamp: tradeTime})

	provider := &fakeProvider{
		bars: []model.Candle{{Close: 180}, {Close: 185}},
	}
	s := newTestQuoteService(provider, &fakeCharts{err: errors.New("down")}, live, &fakeStream{live: true})

	quote, err := s.ResolveQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Source != model.SourceLive {
		t.Errorf("expected live source, got %s", quote.Source)
	}
	if quote.Price != 187.5 {
		t.Errorf("expected live price, got %v", quote.Price)
	}
	if provider.tradeCalls != 0 {
		t.Error("REST latest trade must not be called when live data exists")
	}
	if quote.Timestamp != tradeTime.UnixMilli() {
		t.Errorf("quote must carry the trade's source timestamp %d, got %d",
			tradeTime.UnixMilli(), quote.Timestamp)
	}
	if quote.Change == nil || *quote.Change != 187.5-180 {
		t.Errorf("expected change vs prior-day close 180, got %v", quote.Change)
	}
}

func TestResolveQuote_PriorDayLastTradeIsNewestInWindow(t *testing.T) {
	// Daily bars down forces the chain to the prior-day trade tier. The
	// provider returns the window newest first; the head is the day's
	// final trade and must be the previous close, not the tail.
	provider := &fakeProvider{
		latestTrade: &model.TradePoint{Symbol: "AAPL", Price: 190, Timestamp: time.Now()},
		barsErr:     errors.New("bars unavailable"),
		trades: []model.TradePoint{
			{Symbol: "AAPL", Price: 188, Timestamp: time.Now().Add(-8 * time.Hour)},
			{Symbol: "AAPL", Price: 180.5, Timestamp: time.Now().Add(-20 * time.Hour)},
		},
	}
	s := newTestQuoteService(provider, &fakeCharts{err: errors.New("down")}, cache.NewLiveCache(), &fakeStream{live: false})

	quote, err := s.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Change == nil || *quote.Change != 190-188 {
		t.Fatalf("expected change vs day's final trade 188, got %v", quote.Change)
	}
	if provider.tradesLimit != 1 {
		t.Errorf("expected single-trade fetch, got limit %d", provider.tradesLimit)
	}
}

func TestResolveQuote_FallsBackToRESTAfterGraceWait(t *testing.T) {
	live := cache.NewLiveCache() // empty for AAPL
	provider := &fakeProvider{
		latestTrade: &model.TradePoint{Symbol: "AAPL", Price: 190, Timestamp: time.Now()},
		bars:        []model.Candle{{Close: 180}, {Close: 185}},
	}
	s := newTestQuoteService(provider, &fakeCharts{err: errors.New("down")}, live, &fakeStream{live: true})

	quote, err := s.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Source != model.SourceRest {
		t.Errorf("expected rest source after grace wait, got %s", quote.Source)
	}
	if provider.tradeCalls != 1 {
		t.Errorf("expected one REST trade call, got %d", provider.tradeCalls)
	}
}

func TestResolveQuote_UnwatchedSymbolSkipsLivePath(t *testing.T) {
	provider := &fakeProvider{
		latestTrade: &model.TradePoint{Symbol: "IBM", Price: 140, Timestamp: time.Now()},
		bars:        []model.Candle{{Close: 130}, {Close: 135}},
	}
	s := newTestQuoteService(provider, &fakeCharts{err: errors.New("down")}, cache.NewLiveCache(), &fakeStream{live: true})

	quote, err := s.ResolveQuote(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Source != model.SourceRest {
		t.Errorf("expected rest source, got %s", quote.Source)
	}
}

func TestResolveQuote_NAWhenNoPreviousClose(t *testing.T) {
	provider := &fakeProvider{
		latestTrade: &model.TradePoint{Symbol: "AAPL", Price: 190, Timestamp: time.Now()},
		barsErr:     errors.New("bars unavailable"),
		tradesErr:   errors.New("trades unavailable"),
	}
	s := newTestQuoteService(provider, &fakeCharts{err: errors.New("chart down")}, cache.NewLiveCache(), &fakeStream{live: false})

	quote, err := s.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Change != nil {
		t.Errorf("change must be nil when previous close is unknown, got %v", *quote.Change)
	}
	if quote.ChangePercent.Known {
		t.Error("changePercent must be unknown, never a fabricated zero")
	}

	raw, err := json.Marshal(quote)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(raw), `"change_percent":"N/A"`) {
		t.Errorf("expected change_percent to marshal as N/A, got %s", raw)
	}
	if strings.Contains(string(raw), `"change_percent":0`) {
		t.Errorf("changePercent silently defaulted to zero: %s", raw)
	}
}

func TestResolveQuote_SecondaryProviderPreviousClose(t *testing.T) {
	provider := &fakeProvider{
		latestTrade: &model.TradePoint{Symbol: "AAPL", Price: 110, Timestamp: time.Now()},
		barsErr:     errors.New("bars unavailable"),
		tradesErr:   errors.New("trades unavailable"),
	}
	charts := &fakeCharts{result: &client.ChartResult{
		Candles: []model.Candle{{Close: 100}, {Close: 104}},
	}}
	s := newTestQuoteService(provider, charts, cache.NewLiveCache(), &fakeStream{live: false})

	quote, err := s.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Change == nil || *quote.Change != 10 {
		t.Fatalf("expected change 10 vs secondary previous close 100, got %v", quote.Change)
	}
	if !quote.ChangePercent.Known || quote.ChangePercent.Value != 10 {
		t.Errorf("expected changePercent 10, got %+v", quote.ChangePercent)
	}
}

func TestResolveQuote_FailsWithQuoteUnavailable(t *testing.T) {
	provider := &fakeProvider{
		latestTradeErr: model.NewProviderError("alpaca", model.ErrKindNetwork, "timeout", nil),
	}
	s := newTestQuoteService(provider, &fakeCharts{err: errors.New("down")}, cache.NewLiveCache(), &fakeStream{live: false})

	_, err := s.ResolveQuote(context.Background(), "AAPL")
	var unavailable *model.QuoteUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected QuoteUnavailable, got %v", err)
	}
	if unavailable.Symbol != "AAPL" {
		t.Errorf("expected symbol in error, got %q", unavailable.Symbol)
	}
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		t.Error("expected wrapped ProviderError cause")
	}
}

func TestAssetService_NameFallbackTable(t *testing.T) {
	assets := newTestAssetService(&fakeAssetProvider{err: errors.New("metadata down")})

	if name := assets.GetName(context.Background(), "AAPL"); name != "Apple Inc." {
		t.Errorf("expected fallback table name, got %q", name)
	}
	if name := assets.GetName(context.Background(), "ZZZZ"); name != "ZZZZ" {
		t.Errorf("expected symbol as final fallback, got %q", name)
	}
}

func TestAssetService_SearchCachesUniverse(t *testing.T) {
	provider := &fakeAssetProvider{assets: []model.Asset{
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "AAPW", Name: "Applied Water"},
		{Symbol: "MSFT", Name: "Microsoft Corporation"},
	}}
	fetches := 0
	counting := &countingAssetProvider{inner: provider, fetches: &fetches}
	assets := newTestAssetService(counting)

	results, err := assets.Search(context.Background(), "aap", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 prefix matches, got %d", len(results))
	}

	if _, err := assets.Search(context.Background(), "micro", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetches != 1 {
		t.Errorf("expected one universe fetch, got %d", fetches)
	}
}

type countingAssetProvider struct {
	inner   AssetProvider
	fetches *int
}

func (c *countingAssetProvider) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	return c.inner.GetAsset(ctx, symbol)
}

func (c *countingAssetProvider) GetActiveAssets(ctx context.Context) ([]model.Asset, error) {
	*c.fetches++
	return c.inner.GetActiveAssets(ctx)
}
