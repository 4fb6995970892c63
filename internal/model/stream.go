package model

import "time"

// LiveTrade is the most recent streamed trade for a symbol.
type LiveTrade struct {
	Price     float64
	Size      float64
	Timestamp time.Time
}

// LiveQuote is the most recent streamed bid/ask for a symbol.
type LiveQuote struct {
	BidPrice  float64
	AskPrice  float64
	BidSize   float64
	AskSize   float64
	Timestamp time.Time
}

// LiveBar is the most recent streamed bar (minute or daily) for a symbol.
type LiveBar struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// LiveSymbolState is the mutable per-symbol live state fed by the stream.
// Each field holds the latest message of that kind, guarded against
// out-of-order delivery by the message's own reported timestamp.
type LiveSymbolState struct {
	Trade      *LiveTrade
	Quote      *LiveQuote
	MinuteBar  *LiveBar
	DailyBar   *LiveBar
	LastUpdate time.Time
}

// StreamState names the stream connection lifecycle phases.
type StreamState string

const (
	StreamDisconnected  StreamState = "disconnected"
	StreamConnecting    StreamState = "connecting"
	StreamConnected     StreamState = "connected"
	StreamAuthenticated StreamState = "authenticated"
	StreamSubscribed    StreamState = "subscribed"
)
