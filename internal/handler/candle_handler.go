package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/model"
	"github.com/yourorg/market-data-service/internal/service"
)

// CandleHandler handles candle data HTTP requests
type CandleHandler struct {
	candleService *service.CandleService
	logger        *zap.Logger
}

// NewCandleHandler creates a new candle handler
func NewCandleHandler(candleService *service.CandleService, logger *zap.Logger) *CandleHandler {
	return &CandleHandler{
		candleService: candleService,
		logger:        logger,
	}
}

type candleQueryRequest struct {
	Symbol    string `form:"symbol" binding:"required"`
	Timeframe string `form:"timeframe" binding:"required"`
	Start     string `form:"start"`
	End       string `form:"end"`
	Limit     *int   `form:"limit" binding:"omitempty,gt=0"`
}

// GetCandles handles retrieving a candle series for a symbol and timeframe
// GET /api/v1/market-data/candles
func (h *CandleHandler) GetCandles(c *gin.Context) {
	var req candleQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	timeframe := model.Timeframe(req.Timeframe)
	if !timeframe.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported timeframe"})
		return
	}

	query := model.CandleQuery{
		Symbol:    req.Symbol,
		Timeframe: timeframe,
		Limit:     req.Limit,
	}

	if req.Start != "" {
		start, err := parseDate(req.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start format. Use YYYY-MM-DD or RFC3339"})
			return
		}
		query.Start = &start
	}

	if req.End != "" {
		end, err := parseDate(req.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end format. Use YYYY-MM-DD or RFC3339"})
			return
		}
		query.End = &end
	}

	series, err := h.candleService.GetCandles(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("Failed to get candles",
			zap.Error(err),
			zap.String("symbol", query.Symbol),
			zap.String("timeframe", string(query.Timeframe)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get candle data"})
		return
	}

	c.JSON(http.StatusOK, series)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// Try an alternate format
		t, err = time.Parse("2006-01-02", value)
	}
	return t, err
}
