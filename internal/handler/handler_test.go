package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/tradequeue/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrDuplicateAsset, http.StatusConflict},
		{service.ErrAlreadyQueued, http.StatusConflict},
		{service.ErrInvalidMetric, http.StatusBadRequest},
		{service.ErrInvalidAmount, http.StatusBadRequest},
		{service.ErrUnknownAsset, http.StatusBadRequest},
		{service.ErrSameAsset, http.StatusBadRequest},
		{fmt.Errorf("promote: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("enqueue: %w: %w", service.ErrStoreUnavailable, errors.New("disk")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAdmin(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := gin.New()
	r.GET("/guarded", RequireAdmin("s3cret"), ok)
	r.GET("/disabled", RequireAdmin(""), ok)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(AdminTokenHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set(AdminTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/disabled", nil)
	req.Header.Set(AdminTokenHeader, "")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestRequireRequester(t *testing.T) {
	r := gin.New()
	r.GET("/me", RequireRequester(), func(c *gin.Context) {
		c.String(http.StatusOK, requesterID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequesterHeader, "  alice ")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestRequesterLimiter(t *testing.T) {
	limiter := NewRequesterLimiter(1, 2, quietLogger())

	r := gin.New()
	r.POST("/submit", RequireRequester(), limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	submit := func(requester string) int {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set(RequesterHeader, requester)
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusCreated, submit("alice"))
	assert.Equal(t, http.StatusCreated, submit("alice"))
	assert.Equal(t, http.StatusTooManyRequests, submit("alice"))
	// Buckets are per requester.
	assert.Equal(t, http.StatusCreated, submit("bob"))
}

func TestRequesterLimiterDisabled(t *testing.T) {
	limiter := NewRequesterLimiter(0, 0, quietLogger())
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.get("alice").Allow())
	}
}
