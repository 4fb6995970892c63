package model

import (
	"time"
)

// DataSource tags where a quote or candle series actually came from, so
// consumers can tell synthetic data apart from real history.
type DataSource string

const (
	SourceLive      DataSource = "live"
	SourceRest      DataSource = "rest"
	SourceSecondary DataSource = "secondary"
	SourceSynthetic DataSource = "synthetic"
)

// Candle represents one OHLCV bar. Timestamp is the bar start in epoch
// seconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the bar start as a time.Time.
func (c Candle) Time() time.Time {
	return time.Unix(c.Timestamp, 0)
}

// CandleSeries is an ascending, duplicate-free sequence of candles for one
// symbol and timeframe. Series are built per request and replaced wholesale
// on cache refresh, never mutated in place.
type CandleSeries struct {
	Symbol      string     `json:"symbol"`
	Timeframe   Timeframe  `json:"timeframe"`
	Candles     []Candle   `json:"candles"`
	Source      DataSource `json:"source"`
	Synthetic   bool       `json:"synthetic"`
	LastUpdated time.Time  `json:"last_updated"`
}

// CandleQuery represents a request for candle data.
type CandleQuery struct {
	Symbol    string     `form:"symbol" binding:"required"`
	Timeframe Timeframe  `form:"timeframe" binding:"required"`
	Start     *time.Time `form:"-"`
	End       *time.Time `form:"-"`
	Limit     *int       `form:"limit"`
}

// SplitEvent is a stock split reported by the secondary chart provider.
// Factor is the multiplier applied to OHLC of every candle strictly before
// Timestamp.
type SplitEvent struct {
	Timestamp int64
	Factor    float64
}
