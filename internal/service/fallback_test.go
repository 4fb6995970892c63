package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/metrics"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestFirstSuccess_StopsAtFirstSuccess(t *testing.T) {
	calls := []string{}
	strategies := []strategy[int]{
		{"a", func(ctx context.Context) (int, error) {
			calls = append(calls, "a")
			return 0, errors.New("a failed")
		}},
		{"b", func(ctx context.Context) (int, error) {
			calls = append(calls, "b")
			return 42, nil
		}},
		{"c", func(ctx context.Context) (int, error) {
			calls = append(calls, "c")
			return 0, errors.New("should not run")
		}},
	}

	result, depth, err := firstSuccess(context.Background(), "test", strategies, testMetrics(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 || depth != 2 {
		t.Errorf("expected result 42 at depth 2, got %d at %d", result, depth)
	}
	if len(calls) != 2 {
		t.Errorf("tier after the first success must not run, calls=%v", calls)
	}
}

func TestFirstSuccess_AllFailReturnsLastError(t *testing.T) {
	lastErr := errors.New("last tier failed")
	strategies := []strategy[int]{
		{"a", func(ctx context.Context) (int, error) { return 0, errors.New("first") }},
		{"b", func(ctx context.Context) (int, error) { return 0, lastErr }},
	}

	_, _, err := firstSuccess(context.Background(), "test", strategies, testMetrics(), zap.NewNop())
	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last tier's error, got %v", err)
	}
}

func TestFirstSuccess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	strategies := []strategy[int]{
		{"a", func(ctx context.Context) (int, error) {
			t.Fatal("strategy must not run with canceled context")
			return 0, nil
		}},
	}

	_, _, err := firstSuccess(ctx, "test", strategies, testMetrics(), zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
