package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/metrics"
)

// strategy is one named tier of a fallback chain.
type strategy[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// firstSuccess runs strategies in order and returns the first successful
// result along with its 1-based tier depth. Tier failures are logged at
// Warn and swallowed; only when every tier fails does the last error
// propagate.
func firstSuccess[T any](
	ctx context.Context,
	chain string,
	strategies []strategy[T],
	m *metrics.Metrics,
	logger *zap.Logger,
) (T, int, error) {
	var zero T
	var lastErr error

	for i, st := range strategies {
		if ctx.Err() != nil {
			return zero, 0, ctx.Err()
		}

		result, err := st.run(ctx)
		if err == nil {
			if m != nil {
				m.FallbackDepth.WithLabelValues(chain).Observe(float64(i + 1))
			}
			return result, i + 1, nil
		}

		lastErr = err
		logger.Warn("Fallback tier failed",
			zap.String("chain", chain),
			zap.String("tier", st.name),
			zap.Error(err))
	}

	if lastErr == nil {
		lastErr = errors.New("no strategies configured")
	}
	return zero, 0, lastErr
}
