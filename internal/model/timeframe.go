package model

import "time"

// Timeframe is the bar resolution vocabulary exposed by the service.
type Timeframe string

const (
	Timeframe1Min   Timeframe = "1m"
	Timeframe5Min   Timeframe = "5m"
	Timeframe15Min  Timeframe = "15m"
	Timeframe1Hour  Timeframe = "1h"
	Timeframe4Hour  Timeframe = "4h"
	Timeframe1Day   Timeframe = "1d"
	Timeframe1Week  Timeframe = "1w"
	Timeframe1Month Timeframe = "1M"
)

// AllTimeframes lists every supported timeframe in ascending resolution order.
var AllTimeframes = []Timeframe{
	Timeframe1Min,
	Timeframe5Min,
	Timeframe15Min,
	Timeframe1Hour,
	Timeframe4Hour,
	Timeframe1Day,
	Timeframe1Week,
	Timeframe1Month,
}

// timeframeSpec carries the per-timeframe provider vocabulary and defaults.
// yahooPerBar is how many Yahoo rows make up one bar at this timeframe;
// anything above 1 requires resampling after the fetch.
type timeframeSpec struct {
	step           time.Duration
	alpacaInterval string
	yahooInterval  string
	yahooRange     string
	yahooPerBar    int
	defaultLimit   int
}

var timeframeSpecs = map[Timeframe]timeframeSpec{
	Timeframe1Min:   {time.Minute, "1Min", "1m", "1d", 1, 390},
	Timeframe5Min:   {5 * time.Minute, "5Min", "5m", "5d", 1, 300},
	Timeframe15Min:  {15 * time.Minute, "15Min", "15m", "5d", 1, 200},
	Timeframe1Hour:  {time.Hour, "1Hour", "1h", "1mo", 1, 168},
	Timeframe4Hour:  {4 * time.Hour, "4Hour", "1h", "3mo", 4, 120},
	Timeframe1Day:   {24 * time.Hour, "1Day", "1d", "1y", 1, 180},
	Timeframe1Week:  {7 * 24 * time.Hour, "1Week", "1wk", "5y", 1, 104},
	Timeframe1Month: {30 * 24 * time.Hour, "1Month", "1mo", "10y", 1, 60},
}

// Valid reports whether tf is a supported timeframe.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeSpecs[tf]
	return ok
}

// Step returns the nominal duration of one bar at this timeframe.
func (tf Timeframe) Step() time.Duration {
	if spec, ok := timeframeSpecs[tf]; ok {
		return spec.step
	}
	return 24 * time.Hour
}

// AlpacaInterval maps the timeframe to Alpaca's native bar resolution string.
func (tf Timeframe) AlpacaInterval() string {
	if spec, ok := timeframeSpecs[tf]; ok {
		return spec.alpacaInterval
	}
	return ""
}

// YahooInterval maps the timeframe to the Yahoo chart API interval vocabulary.
// Yahoo has no 4h resolution so the 4h timeframe maps to 1h bars over a
// wider range, resampled afterward per YahooBarsPerCandle.
func (tf Timeframe) YahooInterval() string {
	if spec, ok := timeframeSpecs[tf]; ok {
		return spec.yahooInterval
	}
	return ""
}

// YahooBarsPerCandle returns how many Yahoo rows compose one bar at this
// timeframe. Above 1, fetched rows must be resampled to the native step so
// every tier serves the same bar spacing.
func (tf Timeframe) YahooBarsPerCandle() int {
	if spec, ok := timeframeSpecs[tf]; ok {
		return spec.yahooPerBar
	}
	return 1
}

// YahooRange returns the default Yahoo chart range for this timeframe.
func (tf Timeframe) YahooRange() string {
	if spec, ok := timeframeSpecs[tf]; ok {
		return spec.yahooRange
	}
	return ""
}

// DefaultLimit returns the bar count requested when no explicit range is
// given. Finer intervals request more bars to compensate for provider limits.
func (tf Timeframe) DefaultLimit() int {
	if spec, ok := timeframeSpecs[tf]; ok {
		return spec.defaultLimit
	}
	return 100
}
