package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/navid-fn/tradequeue/internal/notify"
	"github.com/navid-fn/tradequeue/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type TradeHandler struct {
	tradeService *service.TradesService
	hub          *notify.Hub
	upgrader     websocket.Upgrader
	shutdown     context.Context
	logger       logrus.FieldLogger
}

// NewTradeHandler serves trade and queue routes. Feed connections are closed
// when shutdown is done.
func NewTradeHandler(shutdown context.Context, service *service.TradesService, hub *notify.Hub, logger logrus.FieldLogger) *TradeHandler {
	return &TradeHandler{
		tradeService: service,
		hub:          hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		shutdown: shutdown,
		logger:   logger,
	}
}

type submitTradeRequest struct {
	FromAsset string           `json:"from_asset" binding:"required"`
	ToAsset   string           `json:"to_asset" binding:"required"`
	Amount    *decimal.Decimal `json:"amount" binding:"required"`
}

func (h *TradeHandler) Submit(c *gin.Context) {
	var req submitTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.tradeService.SubmitTrade(c.Request.Context(), requesterID(c), req.FromAsset, req.ToAsset, *req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTradeResponse(request))
}

func (h *TradeHandler) Mine(c *gin.Context) {
	request, err := h.tradeService.GetMyTrade(c.Request.Context(), requesterID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if request == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending trade request"})
		return
	}
	c.JSON(http.StatusOK, newTradeResponse(request))
}

func (h *TradeHandler) ListQueue(c *gin.Context) {
	requests, err := h.tradeService.ListQueue(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTradeResponses(requests))
}

func (h *TradeHandler) Prioritize(c *gin.Context) {
	if err := h.tradeService.Prioritize(c.Request.Context(), c.Param("requester")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TradeHandler) Remove(c *gin.Context) {
	if err := h.tradeService.CancelTrade(c.Request.Context(), c.Param("requester")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Feed upgrades to a websocket, sends the current queue, then streams events.
func (h *TradeHandler) Feed(c *gin.Context) {
	requests, err := h.tradeService.ListQueue(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Queue feed upgrade failed")
		return
	}

	conn.SetWriteDeadline(time.Now().Add(notify.WriteTimeout))
	if err := conn.WriteJSON(gin.H{"type": "queue.snapshot", "queue": newTradeResponses(requests)}); err != nil {
		h.logger.WithError(err).Warn("Queue feed snapshot failed")
		conn.Close()
		return
	}
	h.hub.Serve(h.shutdown, conn)
}
