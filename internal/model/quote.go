package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangePercent is the daily percent change of a quote. It marshals as a
// rounded number when the previous close is known and as the string "N/A"
// when it is not. It never silently defaults to zero.
type ChangePercent struct {
	Value float64
	Known bool
}

// KnownChangePercent builds a known percent value rounded to two decimals.
func KnownChangePercent(v float64) ChangePercent {
	return ChangePercent{Value: roundTwo(v), Known: true}
}

func roundTwo(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

// MarshalJSON emits the numeric value, or "N/A" when unknown.
func (p ChangePercent) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return json.Marshal("N/A")
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON accepts either a number or the "N/A" sentinel.
func (p *ChangePercent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "N/A" {
			*p = ChangePercent{}
			return nil
		}
		return fmt.Errorf("invalid change percent %q", s)
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = ChangePercent{Value: v, Known: true}
	return nil
}

// Quote is a current-state snapshot for one symbol. Constructed fresh on
// every resolution, never mutated afterwards, never persisted.
type Quote struct {
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name"`
	Price         float64       `json:"price"`
	Change        *float64      `json:"change"`
	ChangePercent ChangePercent `json:"change_percent"`
	Volume        *float64      `json:"volume"`
	Timestamp     int64         `json:"timestamp"`
	Source        DataSource    `json:"source"`
}

// TradePoint is a single trade reported by a provider.
type TradePoint struct {
	Symbol    string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// Asset is provider metadata for a tradable symbol.
type Asset struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Class    string `json:"class"`
	Tradable bool   `json:"tradable"`
}
