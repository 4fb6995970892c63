package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/stream"
)

// StreamHandler exposes the stream connection's health and an operator
// restart hook.
type StreamHandler struct {
	manager   *stream.Manager
	liveCache *cache.LiveCache
	logger    *zap.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(manager *stream.Manager, liveCache *cache.LiveCache, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		manager:   manager,
		liveCache: liveCache,
		logger:    logger,
	}
}

// GetStatus handles reporting the stream connection state
// GET /api/v1/stream/status
func (h *StreamHandler) GetStatus(c *gin.Context) {
	symbols := gin.H{}
	for _, sym := range h.liveCache.Symbols() {
		if st := h.liveCache.GetRaw(sym); st != nil {
			symbols[sym] = gin.H{"last_update": st.LastUpdate}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"state":    h.manager.State(),
		"attempts": h.manager.Attempts(),
		"symbols":  symbols,
	})
}

// Restart handles restarting the stream connection loop
// POST /api/v1/service/stream/restart
func (h *StreamHandler) Restart(c *gin.Context) {
	h.logger.Info("Stream restart requested")
	h.manager.Restart()
	c.JSON(http.StatusAccepted, gin.H{"state": h.manager.State()})
}
