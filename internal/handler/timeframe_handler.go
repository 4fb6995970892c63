package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/service"
)

// TimeframeHandler handles timeframe HTTP requests
type TimeframeHandler struct {
	timeframeService *service.TimeframeService
	logger           *zap.Logger
}

// NewTimeframeHandler creates a new timeframe handler
func NewTimeframeHandler(timeframeService *service.TimeframeService, logger *zap.Logger) *TimeframeHandler {
	return &TimeframeHandler{
		timeframeService: timeframeService,
		logger:           logger,
	}
}

// GetAllTimeframes handles retrieving all timeframes
// GET /api/v1/timeframes
func (h *TimeframeHandler) GetAllTimeframes(c *gin.Context) {
	timeframes := h.timeframeService.GetAllTimeframes(c.Request.Context())
	c.JSON(http.StatusOK, timeframes)
}

// ValidateTimeframe handles validating a timeframe
// GET /api/v1/timeframes/validate/:timeframe
func (h *TimeframeHandler) ValidateTimeframe(c *gin.Context) {
	timeframe := c.Param("timeframe")
	valid := h.timeframeService.ValidateTimeframe(c.Request.Context(), timeframe)

	c.JSON(http.StatusOK, gin.H{
		"timeframe": timeframe,
		"valid":     valid,
	})
}
