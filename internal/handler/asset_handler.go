package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/service"
)

// AssetHandler handles asset metadata HTTP requests
type AssetHandler struct {
	assetService *service.AssetService
	logger       *zap.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(assetService *service.AssetService, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		logger:       logger,
	}
}

type assetSearchRequest struct {
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,gt=0"`
}

// SearchAssets handles searching the active asset universe
// GET /api/v1/assets/search?q=<query>&limit=<n>
func (h *AssetHandler) SearchAssets(c *gin.Context) {
	var req assetSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	assets, err := h.assetService.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		h.logger.Error("Asset search failed", zap.String("query", req.Query), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Asset search unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": assets,
	})
}
