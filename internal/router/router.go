package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/handler"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AssetHandler  *handler.AssetHandler
	TradeHandler  *handler.TradeHandler
	HealthHandler *handler.HealthHandler

	// AdminToken guards registry and queue management routes.
	AdminToken string

	SubmitLimiter *handler.RequesterLimiter
	Logger        logrus.FieldLogger
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	router.GET("/healthz", cfg.HealthHandler.Health)

	admin := handler.RequireAdmin(cfg.AdminToken)
	api := router.Group("/v1/")
	registerAssetRoutes(api, cfg.AssetHandler, admin)
	registerTradeRoutes(api, cfg.TradeHandler, cfg.SubmitLimiter)
	registerQueueRoutes(api, cfg.TradeHandler, admin)

	return router
}

// requestLogger logs one line per request through logrus instead of gin's
// default stdout writer.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last())
		}
		if c.Writer.Status() >= 500 {
			entry.Error("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
