package router

import (
	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/handler"
)

func registerTradeRoutes(router *gin.RouterGroup, tradeHandler *handler.TradeHandler, limiter *handler.RequesterLimiter) {
	trades := router.Group("/trades", handler.RequireRequester())
	{
		if limiter != nil {
			trades.POST("", limiter.Middleware(), tradeHandler.Submit)
		} else {
			trades.POST("", tradeHandler.Submit)
		}
		trades.GET("/me", tradeHandler.Mine)
	}
}

func registerQueueRoutes(router *gin.RouterGroup, tradeHandler *handler.TradeHandler, admin gin.HandlerFunc) {
	queue := router.Group("/queue", admin)
	{
		queue.GET("", tradeHandler.ListQueue)
		queue.GET("/feed", tradeHandler.Feed)
		queue.POST("/:requester/prioritize", tradeHandler.Prioritize)
		queue.DELETE("/:requester", tradeHandler.Remove)
	}
}
