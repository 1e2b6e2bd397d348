package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/types"
)

// RequestIDMiddleware carries the caller's X-Request-ID, or a fresh one, through
// the request context and back on the response
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx := types.SetRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// ActorMiddleware records who performs the request. The X-User-ID header is
// trusted as is, requests without it act as the system user.
func ActorMiddleware(c *gin.Context) {
	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		userID = types.DefaultUserID
	}

	ctx := types.SetUserID(c.Request.Context(), userID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// RequestLogger logs one line per request once the handlers are done
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		l := log.WithContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			l.Errorw("request failed", fields...)
			return
		}
		l.Infow("request", fields...)
	}
}
