package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"
)

const defaultGraceWait = time.Second

// QuoteService produces one Quote per symbol: live cache when the stream
// is healthy and the symbol is watched, REST otherwise, with a six-tier
// previous-close fallback chain behind change/changePercent.
type QuoteService struct {
	provider  MarketDataProvider
	charts    ChartProvider
	assets    *AssetService
	liveCache *cache.LiveCache
	stream    StreamStatus
	watchList map[string]bool
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// graceWait bounds the single wait for a first stream message when the
	// symbol is watched but the cache is still empty.
	graceWait time.Duration
	now       func() time.Time
}

// NewQuoteService creates a new quote service.
func NewQuoteService(
	provider MarketDataProvider,
	charts ChartProvider,
	assets *AssetService,
	liveCache *cache.LiveCache,
	stream StreamStatus,
	watchList []string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *QuoteService {
	watched := make(map[string]bool, len(watchList))
	for _, sym := range watchList {
		watched[strings.ToUpper(sym)] = true
	}
	return &QuoteService{
		provider:  provider,
		charts:    charts,
		assets:    assets,
		liveCache: liveCache,
		stream:    stream,
		watchList: watched,
		metrics:   m,
		logger:    logger,
		graceWait: defaultGraceWait,
		now:       time.Now,
	}
}

// SetGraceWait overrides the live-cache grace wait. Test hook.
func (s *QuoteService) SetGraceWait(d time.Duration) { s.graceWait = d }

// ResolveQuote produces a Quote for symbol or fails with QuoteUnavailable
// when both the live and REST paths are exhausted.
func (s *QuoteService) ResolveQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, &model.QuoteUnavailable{Symbol: symbol, Cause: fmt.Errorf("empty symbol")}
	}

	quote := &model.Quote{Symbol: symbol}

	price, priceTime, volume, ok := s.livePrice(ctx, symbol)
	if ok {
		quote.Price = price
		quote.Volume = volume
		quote.Timestamp = priceTime.UnixMilli()
		quote.Source = model.SourceLive
	} else {
		trade, err := s.provider.GetLatestTrade(ctx, symbol)
		if err != nil {
			return nil, &model.QuoteUnavailable{Symbol: symbol, Cause: err}
		}
		quote.Price = trade.Price
		quote.Timestamp = trade.Timestamp.UnixMilli()
		quote.Source = model.SourceRest
	}

	if prevClose, found := s.resolvePreviousClose(ctx, symbol); found && prevClose != 0 {
		change := quote.Price - prevClose
		quote.Change = &change
		quote.ChangePercent = model.KnownChangePercent(change / prevClose * 100)
	}
	// Otherwise Change stays nil and ChangePercent marshals as "N/A":
	// a missing previous close is reported, never papered over with zero.

	quote.Name = s.assets.GetName(ctx, symbol)
	return quote, nil
}

// livePrice reads the stream cache for a watched symbol, returning the
// price with its source-reported timestamp. When the stream is live but
// no message has arrived yet it waits once, bounded by graceWait, then
// re-checks; no polling.
func (s *QuoteService) livePrice(ctx context.Context, symbol string) (float64, time.Time, *float64, bool) {
	if !s.watchList[symbol] || !s.stream.Live() {
		return 0, time.Time{}, nil, false
	}

	price, priceTime, ok := s.liveCache.GetPriceAndTime(symbol)
	if !ok {
		timer := time.NewTimer(s.graceWait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return 0, time.Time{}, nil, false
		case <-timer.C:
		}
		price, priceTime, ok = s.liveCache.GetPriceAndTime(symbol)
		if !ok {
			return 0, time.Time{}, nil, false
		}
	}

	var volume *float64
	if v, hasVolume := s.liveCache.GetVolume(symbol); hasVolume {
		volume = &v
	}
	return price, priceTime, volume, true
}

// resolvePreviousClose walks the ordered previous-close chain and returns
// the first tier's answer. Returns found=false when every tier fails.
func (s *QuoteService) resolvePreviousClose(ctx context.Context, symbol string) (float64, bool) {
	strategies := []strategy[float64]{
		{"prior-day-bar", func(ctx context.Context) (float64, error) {
			return s.closeFromDailyBars(ctx, symbol, 2, true)
		}},
		{"recent-daily-bars", func(ctx context.Context) (float64, error) {
			return s.closeFromDailyBars(ctx, symbol, 5, false)
		}},
		{"prior-day-last-trade", func(ctx context.Context) (float64, error) {
			return s.priorDayLastTrade(ctx, symbol)
		}},
		{"intraday-open", func(ctx context.Context) (float64, error) {
			return s.intradayOpen(ctx, symbol)
		}},
		{"week-window", func(ctx context.Context) (float64, error) {
			return s.weekWindowClose(ctx, symbol)
		}},
		{"secondary-daily", func(ctx context.Context) (float64, error) {
			return s.secondaryPreviousClose(ctx, symbol)
		}},
	}

	prevClose, _, err := firstSuccess(ctx, "previous-close", strategies, s.metrics, s.logger)
	if err != nil {
		s.logger.Warn("No previous close could be established",
			zap.String("symbol", symbol),
			zap.Error(err))
		return 0, false
	}
	return prevClose, true
}

// closeFromDailyBars fetches the last `limit` daily bars. With
// secondToLast it answers the prior day's close; otherwise the most
// recent close available.
func (s *QuoteService) closeFromDailyBars(ctx context.Context, symbol string, limit int, secondToLast bool) (float64, error) {
	bars, err := s.provider.GetBars(ctx, symbol, "1Day", nil, nil, limit)
	if err != nil {
		return 0, err
	}
	if secondToLast {
		if len(bars) < 2 {
			return 0, fmt.Errorf("need 2 daily bars, got %d", len(bars))
		}
		return bars[len(bars)-2].Close, nil
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no daily bars")
	}
	return bars[len(bars)-1].Close, nil
}

// priorDayLastTrade answers with the last trade seen on the prior
// calendar day. GetTrades returns newest first, so the day's final trade
// is the head of the result, not wherever a capped ascending page ends.
func (s *QuoteService) priorDayLastTrade(ctx context.Context, symbol string) (float64, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	trades, err := s.provider.GetTrades(ctx, symbol, dayStart.AddDate(0, 0, -1), dayStart, 1)
	if err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, fmt.Errorf("no trades on prior day")
	}
	return trades[0].Price, nil
}

// intradayOpen uses today's first intraday bar open as a previous-close
// proxy, so change reads as change-since-open.
func (s *QuoteService) intradayOpen(ctx context.Context, symbol string) (float64, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	bars, err := s.provider.GetBars(ctx, symbol, "5Min", &dayStart, nil, 0)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no intraday bars today")
	}
	return bars[0].Open, nil
}

// weekWindowClose takes the second-to-last close from a 7-day daily bar
// window.
func (s *QuoteService) weekWindowClose(ctx context.Context, symbol string) (float64, error) {
	start := s.now().AddDate(0, 0, -7)
	bars, err := s.provider.GetBars(ctx, symbol, "1Day", &start, nil, 0)
	if err != nil {
		return 0, err
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("need 2 bars in week window, got %d", len(bars))
	}
	return bars[len(bars)-2].Close, nil
}

// secondaryPreviousClose asks the secondary chart provider for a short
// daily series and takes the second-to-last close.
func (s *QuoteService) secondaryPreviousClose(ctx context.Context, symbol string) (float64, error) {
	chart, err := s.charts.GetChart(ctx, symbol, "1d", "5d")
	if err != nil {
		return 0, err
	}
	if len(chart.Candles) < 2 {
		return 0, fmt.Errorf("need 2 secondary candles, got %d", len(chart.Candles))
	}
	return chart.Candles[len(chart.Candles)-2].Close, nil
}
