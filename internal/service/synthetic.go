package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/yourorg/market-data-service/internal/model"
)

const (
	// Synthetic walk bounds: each step moves within ±2% of the base
	// price, candle extremes stay within ±1% of the open/close span.
	syntheticStepPct    = 0.02
	syntheticExtremePct = 0.01

	maxSyntheticCandles = 500
)

// syntheticGenerator produces a random-walk candle series anchored to a
// base price when every real provider tier is exhausted. Output always
// satisfies low <= min(open,close) <= max(open,close) <= high and uses
// strictly increasing timestamps at the timeframe's step.
type syntheticGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSyntheticGenerator(seed int64) *syntheticGenerator {
	return &syntheticGenerator{rng: rand.New(rand.NewSource(seed))}
}

// generate builds count candles ending at end, or spanning [start, end]
// when start is non-nil.
func (g *syntheticGenerator) generate(tf model.Timeframe, basePrice float64, start *time.Time, end time.Time, count int) []model.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()

	step := tf.Step()
	if count <= 0 {
		count = tf.DefaultLimit()
	}

	first := end.Add(-time.Duration(count-1) * step)
	if start != nil {
		span := end.Sub(*start)
		if span <= 0 {
			span = step
		}
		n := int(span/step) + 1
		if n < count {
			count = n
		}
		first = *start
	}
	if count > maxSyntheticCandles {
		count = maxSyntheticCandles
	}
	if count < 1 {
		count = 1
	}

	candles := make([]model.Candle, 0, count)
	price := basePrice
	for i := 0; i < count; i++ {
		open := price
		delta := (g.rng.Float64()*2 - 1) * syntheticStepPct * basePrice
		close := open + delta
		if close <= 0 {
			close = open
		}

		upper := open
		lower := close
		if close > open {
			upper = close
			lower = open
		}
		high := upper * (1 + g.rng.Float64()*syntheticExtremePct)
		low := lower * (1 - g.rng.Float64()*syntheticExtremePct)

		candles = append(candles, model.Candle{
			Timestamp: first.Add(time.Duration(i) * step).Unix(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(g.rng.Intn(900_000) + 100_000),
		})
		price = close
	}
	return candles
}
