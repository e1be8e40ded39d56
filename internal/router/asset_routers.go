package router

import (
	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/handler"
)

func registerAssetRoutes(router *gin.RouterGroup, assetHandler *handler.AssetHandler, admin gin.HandlerFunc) {
	assets := router.Group("/assets")
	{
		assets.GET("", assetHandler.List)
		assets.GET("/suggest", assetHandler.Suggest)
		assets.POST("", admin, assetHandler.Create)
		assets.PATCH("/:name", admin, assetHandler.UpdateMetric)
	}
}
