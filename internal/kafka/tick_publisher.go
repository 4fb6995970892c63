package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickEvent is the normalized trade event fanned out to downstream
// consumers.
type TickEvent struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Timestamp int64   `json:"timestamp_ns"`
}

// TickPublisher fans normalized stream trades out to a Kafka topic. It is
// best-effort: publish failures are logged and never block or fail the
// stream path.
type TickPublisher struct {
	producer *Producer
	topic    string
	logger   *zap.Logger
}

// NewTickPublisher creates a publisher writing to topic via producer.
func NewTickPublisher(producer *Producer, topic string, logger *zap.Logger) *TickPublisher {
	return &TickPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishTrade sends one trade event keyed by symbol.
func (p *TickPublisher) PublishTrade(ctx context.Context, symbol string, price, size float64, ts time.Time) error {
	return p.producer.Publish(ctx, p.topic, Message{
		Key: symbol,
		Value: TickEvent{
			Symbol:    symbol,
			Price:     price,
			Size:      size,
			Timestamp: ts.UnixNano(),
		},
	})
}
