package stream

import "time"

// Alpaca stream wire messages. Inbound frames are JSON arrays of objects
// discriminated by the "T" field; one struct covers every variant since
// the field sets are disjoint.
type inboundMessage struct {
	Type   string `json:"T"`
	Msg    string `json:"msg,omitempty"`
	Code   int    `json:"code,omitempty"`
	Symbol string `json:"S,omitempty"`

	// trade
	Price float64 `json:"p,omitempty"`
	Size  float64 `json:"s,omitempty"`

	// quote
	BidPrice float64 `json:"bp,omitempty"`
	AskPrice float64 `json:"ap,omitempty"`
	BidSize  float64 `json:"bs,omitempty"`
	AskSize  float64 `json:"as,omitempty"`

	// bar
	Open   float64 `json:"o,omitempty"`
	High   float64 `json:"h,omitempty"`
	Low    float64 `json:"l,omitempty"`
	Close  float64 `json:"c,omitempty"`
	Volume float64 `json:"v,omitempty"`

	Timestamp time.Time `json:"t,omitempty"`
}

const (
	msgTypeSuccess      = "success"
	msgTypeError        = "error"
	msgTypeSubscription = "subscription"
	msgTypeTrade        = "t"
	msgTypeQuote        = "q"
	msgTypeBar          = "b"
	msgTypeDailyBar     = "d"

	ackConnected     = "connected"
	ackAuthenticated = "authenticated"
)

type authMessage struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeMessage struct {
	Action    string   `json:"action"`
	Trades    []string `json:"trades"`
	Quotes    []string `json:"quotes"`
	Bars      []string `json:"bars"`
	DailyBars []string `json:"dailyBars"`
}
