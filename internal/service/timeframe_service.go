package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/model"
)

// TimeframeService exposes the supported timeframe vocabulary.
type TimeframeService struct {
	logger *zap.Logger
}

// NewTimeframeService creates a new timeframe service.
func NewTimeframeService(logger *zap.Logger) *TimeframeService {
	return &TimeframeService{logger: logger}
}

// GetAllTimeframes returns every supported timeframe.
func (s *TimeframeService) GetAllTimeframes(ctx context.Context) []model.Timeframe {
	return model.AllTimeframes
}

// ValidateTimeframe reports whether the given timeframe is supported.
func (s *TimeframeService) ValidateTimeframe(ctx context.Context, timeframe string) bool {
	return model.Timeframe(timeframe).Valid()
}
