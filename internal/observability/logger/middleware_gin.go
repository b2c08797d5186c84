package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/cloudnest/internal/observability/context"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps the last handler error to (type, code) for the log line.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns a request id and writes one http_request line per call.
// Health checks and metric scrapes are logged at debug.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := requestID(c)
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), id))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := append(requestFields(c, route, status, time.Since(start)), cfg.errorFields(c)...)

		// The auth middleware swaps the request context, so the actor is only
		// visible after Next.
		log := FromContext(c.Request.Context())
		switch {
		case route == "/health" || route == "/metrics":
			log.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case status == http.StatusTooManyRequests:
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

func requestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetString("request_id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func requestFields(c *gin.Context, route string, status int, elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		zap.String("client_ip", c.ClientIP()),
	}
}

func (cfg MiddlewareConfig) errorFields(c *gin.Context) []zap.Field {
	last := c.Errors.Last()
	if last == nil {
		return nil
	}
	var errType, errCode string
	if cfg.ErrorClassifier != nil {
		errType, errCode = cfg.ErrorClassifier(last.Err)
	}
	fields := []zap.Field{zap.String("error_type", errType), zap.String("error_code", errCode)}
	if cfg.Debug {
		fields = append(fields, zap.String("error", last.Err.Error()), zap.Stack("stack"))
	}
	return fields
}
