package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	RequesterHeader  = "X-Requester-ID"
	AdminTokenHeader = "X-Admin-Token"

	requesterKey = "requester"
)

// RequireAdmin rejects requests without the configured admin token. With no
// token configured every request is rejected.
func RequireAdmin(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin capability required"})
			return
		}
		c.Next()
	}
}

// RequireRequester reads the caller's identity from the requester header.
func RequireRequester() gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := strings.TrimSpace(c.GetHeader(RequesterHeader))
		if requester == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + RequesterHeader + " header"})
			return
		}
		c.Set(requesterKey, requester)
		c.Next()
	}
}

func requesterID(c *gin.Context) string {
	return c.GetString(requesterKey)
}

// RequesterLimiter holds one token bucket per requester.
type RequesterLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	logger   logrus.FieldLogger
}

// NewRequesterLimiter allows perMinute requests per requester with the given
// burst. perMinute <= 0 disables limiting.
func NewRequesterLimiter(perMinute, burst int, logger logrus.FieldLogger) *RequesterLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	return &RequesterLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		logger:   logger,
	}
}

func (l *RequesterLimiter) get(requester string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[requester]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[requester] = limiter
	}
	return limiter
}

// Middleware must run after RequireRequester.
func (l *RequesterLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := requesterID(c)
		if !l.get(requester).Allow() {
			l.logger.WithField("requester", requester).Warn("Trade submission rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
