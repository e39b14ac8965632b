package app

import (
	"math"
	"net/http"
	"strconv"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/uniflow-chat/internal/ctxutil"
	"github.com/garyellow/uniflow-chat/internal/logger"
)

const requestIDHeader = "X-Request-Id"

// sentryMiddleware attaches a per-request hub. Panics are re-raised so
// gin.Recovery still answers 500.
func sentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// noStoreMiddleware keeps session state out of shared caches.
func noStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// loggingMiddleware assigns a request id and logs HTTP requests with
// status-based levels: 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Header(requestIDHeader, requestID)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithRequestID(requestID).
			WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", duration.Milliseconds()).
			WithField("client_ip", c.ClientIP())

		if sid := ctxutil.GetSessionID(c.Request.Context()); sid != "" {
			entry = entry.WithSessionID(sid)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}

// rateLimitMiddleware guards the model-backed turn endpoint: a process-wide
// bucket first, then a per-client bucket with a rolling daily quota.
func (a *Application) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.globalLimiter != nil && !a.globalLimiter.Allow() {
			a.metrics.RecordRateLimiterDrop(globalLimiterName)
			a.rejectRateLimited(c, a.globalLimiter.RetryAfter(), "server is busy, please retry shortly")
			return
		}

		if a.clientLimiter != nil {
			d := a.clientLimiter.Decide(c.ClientIP())
			if !d.Allowed {
				msg := "too many messages, please slow down"
				if d.DailyExceeded {
					msg = "daily message quota reached"
				}
				a.rejectRateLimited(c, d.RetryAfter, msg)
				return
			}
		}

		c.Next()
	}
}

func (a *Application) rejectRateLimited(c *gin.Context, retryAfter time.Duration, msg string) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	a.metrics.RecordHTTPError("rate_limited", "chat")
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      msg,
		"retryAfter": secs,
	})
}
