package cache

import (
	"sync"
	"time"

	"github.com/yourorg/market-data-service/internal/model"
)

// LiveCache stores the latest streamed state per symbol. Reads are
// synchronous and non-blocking. Writes are last-write-wins per (symbol,
// field), except that a write carrying a timestamp older than the stored
// one for that field is dropped, so late out-of-order messages cannot
// regress the displayed price.
type LiveCache struct {
	mu      sync.RWMutex
	symbols map[string]*model.LiveSymbolState
}

// NewLiveCache creates an empty live cache. The watch-list is small and
// fixed, so entries are never evicted.
func NewLiveCache() *LiveCache {
	return &LiveCache{
		symbols: make(map[string]*model.LiveSymbolState),
	}
}

func (c *LiveCache) state(symbol string) *model.LiveSymbolState {
	st, ok := c.symbols[symbol]
	if !ok {
		st = &model.LiveSymbolState{}
		c.symbols[symbol] = st
	}
	return st
}

// UpdateTrade records the latest trade for a symbol.
func (c *LiveCache) UpdateTrade(symbol string, trade model.LiveTrade) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(symbol)
	if st.Trade != nil && trade.Timestamp.Before(st.Trade.Timestamp) {
		return false
	}
	st.Trade = &trade
	st.LastUpdate = time.Now()
	return true
}

// UpdateQuote records the latest bid/ask for a symbol.
func (c *LiveCache) UpdateQuote(symbol string, quote model.LiveQuote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(symbol)
	if st.Quote != nil && quote.Timestamp.Before(st.Quote.Timestamp) {
		return false
	}
	st.Quote = &quote
	st.LastUpdate = time.Now()
	return true
}

// UpdateMinuteBar records the latest minute bar for a symbol.
func (c *LiveCache) UpdateMinuteBar(symbol string, bar model.LiveBar) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(symbol)
	if st.MinuteBar != nil && bar.Timestamp.Before(st.MinuteBar.Timestamp) {
		return false
	}
	st.MinuteBar = &bar
	st.LastUpdate = time.Now()
	return true
}

// UpdateDailyBar records the latest daily bar for a symbol.
func (c *LiveCache) UpdateDailyBar(symbol string, bar model.LiveBar) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state(symbol)
	if st.DailyBar != nil && bar.Timestamp.Before(st.DailyBar.Timestamp) {
		return false
	}
	st.DailyBar = &bar
	st.LastUpdate = time.Now()
	return true
}

// GetPrice returns the best current price for a symbol, or false when no
// state is held. Priority is trade price, then daily bar close, then
// bid/ask midpoint. That order must never be inverted.
func (c *LiveCache) GetPrice(symbol string) (float64, bool) {
	price, _, ok := c.GetPriceAndTime(symbol)
	return price, ok
}

// GetPriceAndTime returns the best current price together with the
// source-reported timestamp of the message it came from, so callers can
// stamp quotes with market time rather than local wall-clock time.
func (c *LiveCache) GetPriceAndTime(symbol string) (float64, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.symbols[symbol]
	if !ok {
		return 0, time.Time{}, false
	}
	if st.Trade != nil {
		return st.Trade.Price, st.Trade.Timestamp, true
	}
	if st.DailyBar != nil {
		return st.DailyBar.Close, st.DailyBar.Timestamp, true
	}
	if st.Quote != nil && (st.Quote.BidPrice > 0 || st.Quote.AskPrice > 0) {
		return (st.Quote.BidPrice + st.Quote.AskPrice) / 2, st.Quote.Timestamp, true
	}
	return 0, time.Time{}, false
}

// GetVolume returns the best current volume reading: daily bar volume,
// else the last trade size.
func (c *LiveCache) GetVolume(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.symbols[symbol]
	if !ok {
		return 0, false
	}
	if st.DailyBar != nil {
		return st.DailyBar.Volume, true
	}
	if st.Trade != nil {
		return st.Trade.Size, true
	}
	return 0, false
}

// GetRaw returns a copy of the full live state for a symbol, or nil.
func (c *LiveCache) GetRaw(symbol string) *model.LiveSymbolState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.symbols[symbol]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

// Symbols returns the symbols currently held, for status reporting.
func (c *LiveCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.symbols))
	for sym := range c.symbols {
		out = append(out, sym)
	}
	return out
}
