package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/model"
	"github.com/navid-fn/tradequeue/internal/service"
	"github.com/shopspring/decimal"
)

// TradeResponse is a trade request as returned over HTTP, with its quote.
type TradeResponse struct {
	model.TradeRequest
	Quote decimal.Decimal `json:"quote"`
}

func newTradeResponse(request *model.TradeRequest) TradeResponse {
	return TradeResponse{TradeRequest: *request, Quote: request.Quote()}
}

func newTradeResponses(requests []model.TradeRequest) []TradeResponse {
	out := make([]TradeResponse, 0, len(requests))
	for i := range requests {
		out = append(out, newTradeResponse(&requests[i]))
	}
	return out
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDuplicateAsset),
		errors.Is(err, service.ErrAlreadyQueued):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidMetric),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnknownAsset),
		errors.Is(err, service.ErrSameAsset),
		errors.Is(err, service.ErrInvalidAssetName),
		errors.Is(err, service.ErrInvalidRequester):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
