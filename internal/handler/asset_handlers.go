package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/service"
	"github.com/shopspring/decimal"
)

type AssetHandler struct {
	assetService *service.AssetService
}

func NewAssetHandler(service *service.AssetService) *AssetHandler {
	return &AssetHandler{
		assetService: service,
	}
}

type createAssetRequest struct {
	Name   string           `json:"name" binding:"required"`
	Metric *decimal.Decimal `json:"metric"`
}

type updateMetricRequest struct {
	Metric *decimal.Decimal `json:"metric" binding:"required"`
}

func (h *AssetHandler) Create(c *gin.Context) {
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, err := h.assetService.CreateAsset(c.Request.Context(), req.Name, req.Metric)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *AssetHandler) UpdateMetric(c *gin.Context) {
	var req updateMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, err := h.assetService.UpdateMetric(c.Request.Context(), c.Param("name"), *req.Metric)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *AssetHandler) List(c *gin.Context) {
	assets, err := h.assetService.ListAssets(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

// Suggest serves autocomplete for asset names.
func (h *AssetHandler) Suggest(c *gin.Context) {
	names, err := h.assetService.SuggestAssets(c.Request.Context(), c.Query("q"), c.Query("exclude"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}
