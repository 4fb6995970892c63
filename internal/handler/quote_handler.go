package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/model"
	"github.com/yourorg/market-data-service/internal/service"
)

// QuoteHandler handles quote HTTP requests
type QuoteHandler struct {
	quoteService *service.QuoteService
	logger       *zap.Logger
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quoteService *service.QuoteService, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		logger:       logger,
	}
}

// GetQuote handles resolving the current quote for a symbol
// GET /api/v1/quotes/:symbol
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	quote, err := h.quoteService.ResolveQuote(c.Request.Context(), symbol)
	if err != nil {
		h.logger.Error("Failed to resolve quote",
			zap.String("symbol", symbol),
			zap.Error(err))

		status := http.StatusBadGateway
		var pe *model.ProviderError
		if errors.As(err, &pe) && pe.Kind == model.ErrKindNotFound {
			status = http.StatusNotFound
		}

		var unavailable *model.QuoteUnavailable
		if errors.As(err, &unavailable) {
			c.JSON(status, gin.H{
				"error":  "Quote unavailable",
				"symbol": unavailable.Symbol,
				"cause":  unavailable.Cause.Error(),
			})
			return
		}

		c.JSON(status, gin.H{"error": "Quote unavailable", "symbol": symbol})
		return
	}

	c.JSON(http.StatusOK, quote)
}
