package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"
)

const defaultBasePrice = 100.0

// basePriceResolver supplies an anchor price for the synthetic tier.
// *QuoteService satisfies it.
type basePriceResolver interface {
	ResolveQuote(ctx context.Context, symbol string) (*model.Quote, error)
}

// CandleService produces candle series through a three-tier fallback:
// primary provider bars, secondary chart provider with split adjustment,
// then a synthetic walk that always succeeds. Results are memoized by
// (symbol, timeframe, start, end) with a TTL; a miss or expiry always
// falls back through the full chain.
type CandleService struct {
	provider    MarketDataProvider
	charts      ChartProvider
	quotes      basePriceResolver
	seriesCache *cache.TTLCache
	synthetic   *syntheticGenerator
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewCandleService creates a new candle service.
func NewCandleService(
	provider MarketDataProvider,
	charts ChartProvider,
	quotes basePriceResolver,
	seriesCache *cache.TTLCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CandleService {
	return &CandleService{
		provider:    provider,
		charts:      charts,
		quotes:      quotes,
		seriesCache: seriesCache,
		synthetic:   newSyntheticGenerator(time.Now().UnixNano()),
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *CandleService) SetClock(now func() time.Time) { s.now = now }

// GetCandles resolves a candle series for the query. The synthetic tier
// always produces data, so CandleFetchFailed is effectively unreachable.
func (s *CandleService) GetCandles(ctx context.Context, query model.CandleQuery) (*model.CandleSeries, error) {
	query.Symbol = strings.ToUpper(strings.TrimSpace(query.Symbol))
	if query.Symbol == "" {
		return nil, &model.CandleFetchFailed{Symbol: query.Symbol, Cause: fmt.Errorf("empty symbol")}
	}
	if !query.Timeframe.Valid() {
		return nil, &model.CandleFetchFailed{Symbol: query.Symbol,
			Cause: fmt.Errorf("unsupported timeframe %q", query.Timeframe)}
	}

	key := seriesCacheKey(query)
	if cached, ok := s.seriesCache.Get(key); ok {
		s.metrics.CacheLookups.WithLabelValues("series", "hit").Inc()
		return cached.(*model.CandleSeries), nil
	}
	s.metrics.CacheLookups.WithLabelValues("series", "miss").Inc()

	strategies := []strategy[*model.CandleSeries]{
		{"primary-bars", func(ctx context.Context) (*model.CandleSeries, error) {
			return s.primaryBars(ctx, query)
		}},
		{"secondary-chart", func(ctx context.Context) (*model.CandleSeries, error) {
			return s.secondaryChart(ctx, query)
		}},
		{"synthetic", func(ctx context.Context) (*model.CandleSeries, error) {
			return s.syntheticSeries(ctx, query), nil
		}},
	}

	series, tier, err := firstSuccess(ctx, "candles", strategies, s.metrics, s.logger)
	if err != nil {
		return nil, &model.CandleFetchFailed{Symbol: query.Symbol, Cause: err}
	}
	if tier > 1 {
		s.logger.Info("Candle series served by fallback tier",
			zap.String("symbol", query.Symbol),
			zap.String("timeframe", string(query.Timeframe)),
			zap.String("source", string(series.Source)))
	}

	s.seriesCache.Set(key, series)
	return series, nil
}

func seriesCacheKey(q model.CandleQuery) string {
	start, end := "NA", "NA"
	if q.Start != nil {
		start = q.Start.UTC().Format(time.RFC3339)
	}
	if q.End != nil {
		end = q.End.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%s|%s|%s", q.Symbol, q.Timeframe, start, end)
}

// primaryBars fetches native-resolution bars from the primary provider.
func (s *CandleService) primaryBars(ctx context.Context, query model.CandleQuery) (*model.CandleSeries, error) {
	limit := 0
	if query.Start == nil && query.End == nil {
		limit = query.Timeframe.DefaultLimit()
		if query.Limit != nil && *query.Limit > 0 {
			limit = *query.Limit
		}
	}

	candles, err := s.provider.GetBars(ctx, query.Symbol, query.Timeframe.AlpacaInterval(), query.Start, query.End, limit)
	if err != nil {
		return nil, err
	}

	candles = normalizeCandles(candles)
	candles = filterWindow(candles, query.Start, query.End)
	candles = trimToLimit(candles, query.Limit)
	if len(candles) == 0 {
		return nil, fmt.Errorf("primary provider returned no bars for %s %s", query.Symbol, query.Timeframe)
	}

	return &model.CandleSeries{
		Symbol:      query.Symbol,
		Timeframe:   query.Timeframe,
		Candles:     candles,
		Source:      model.SourceRest,
		LastUpdated: s.now(),
	}, nil
}

// secondaryChart fetches from the secondary chart provider and applies
// retroactive split adjustment before trimming to the requested window.
func (s *CandleService) secondaryChart(ctx context.Context, query model.CandleQuery) (*model.CandleSeries, error) {
	chart, err := s.charts.GetChart(ctx, query.Symbol, query.Timeframe.YahooInterval(), query.Timeframe.YahooRange())
	if err != nil {
		return nil, err
	}

	candles := applySplitAdjustment(chart.Candles, chart.Splits)
	candles = normalizeCandles(candles)
	if query.Timeframe.YahooBarsPerCandle() > 1 {
		candles = resampleCandles(candles, query.Timeframe.Step())
	}
	candles = filterWindow(candles, query.Start, query.End)
	candles = trimToLimit(candles, query.Limit)
	if len(candles) == 0 {
		return nil, fmt.Errorf("secondary provider returned no candles for %s %s", query.Symbol, query.Timeframe)
	}

	return &model.CandleSeries{
		Symbol:      query.Symbol,
		Timeframe:   query.Timeframe,
		Candles:     candles,
		Source:      model.SourceSecondary,
		LastUpdated: s.now(),
	}, nil
}

// syntheticSeries anchors a random walk to the best known price. The
// series is explicitly flagged so consumers can never mistake it for real
// history.
func (s *CandleService) syntheticSeries(ctx context.Context, query model.CandleQuery) *model.CandleSeries {
	basePrice := defaultBasePrice
	if quote, err := s.quotes.ResolveQuote(ctx, query.Symbol); err == nil && quote.Price > 0 {
		basePrice = quote.Price
	} else if err != nil {
		s.logger.Warn("No base price for synthetic candles, using default",
			zap.String("symbol", query.Symbol),
			zap.Error(err))
	}

	end := s.now()
	if query.End != nil {
		end = *query.End
	}
	count := query.Timeframe.DefaultLimit()
	if query.Limit != nil && *query.Limit > 0 {
		count = *query.Limit
	}

	candles := s.synthetic.generate(query.Timeframe, basePrice, query.Start, end, count)

	return &model.CandleSeries{
		Symbol:      query.Symbol,
		Timeframe:   query.Timeframe,
		Candles:     candles,
		Source:      model.SourceSynthetic,
		Synthetic:   true,
		LastUpdated: s.now(),
	}
}

// applySplitAdjustment multiplies OHLC of every candle whose timestamp
// precedes a split event by that event's factor. Events are processed in
// ascending time order so a candle before several splits compounds all of
// their factors. A bar whose span contains the split timestamp counts as
// "before" the split when its start time precedes it.
func applySplitAdjustment(candles []model.Candle, splits []model.SplitEvent) []model.Candle {
	if len(splits) == 0 || len(candles) == 0 {
		return candles
	}

	sorted := make([]model.SplitEvent, len(splits))
	copy(sorted, splits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	adjusted := make([]model.Candle, len(candles))
	copy(adjusted, candles)
	for _, split := range sorted {
		if split.Factor <= 0 {
			continue
		}
		for i := range adjusted {
			if adjusted[i].Timestamp < split.Timestamp {
				adjusted[i].Open *= split.Factor
				adjusted[i].High *= split.Factor
				adjusted[i].Low *= split.Factor
				adjusted[i].Close *= split.Factor
			}
		}
	}
	return adjusted
}

// resampleCandles buckets ascending finer-grained candles into step-wide
// bars aligned to step boundaries: first open, max high, min low, last
// close, summed volume. Used when a provider has no native resolution for
// a timeframe, so its series carries the same spacing as every other tier.
func resampleCandles(candles []model.Candle, step time.Duration) []model.Candle {
	if len(candles) == 0 {
		return candles
	}
	stepSec := int64(step.Seconds())

	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		bucket := c.Timestamp - c.Timestamp%stepSec
		if len(out) > 0 && out[len(out)-1].Timestamp == bucket {
			last := &out[len(out)-1]
			if c.High > last.High {
				last.High = c.High
			}
			if c.Low < last.Low {
				last.Low = c.Low
			}
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		out = append(out, model.Candle{
			Timestamp: bucket,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return out
}

// normalizeCandles sorts ascending by timestamp and drops duplicate
// timestamps, keeping the last occurrence.
func normalizeCandles(candles []model.Candle) []model.Candle {
	if len(candles) == 0 {
		return candles
	}

	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	out := sorted[:0]
	for _, c := range sorted {
		if len(out) > 0 && out[len(out)-1].Timestamp == c.Timestamp {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// filterWindow keeps only candles inside [start, end], both inclusive.
func filterWindow(candles []model.Candle, start, end *time.Time) []model.Candle {
	if start == nil && end == nil {
		return candles
	}

	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if start != nil && c.Timestamp < start.Unix() {
			continue
		}
		if end != nil && c.Timestamp > end.Unix() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// trimToLimit keeps the most recent limit candles.
func trimToLimit(candles []model.Candle, limit *int) []model.Candle {
	if limit == nil || *limit <= 0 || len(candles) <= *limit {
		return candles
	}
	return candles[len(candles)-*limit:]
}
