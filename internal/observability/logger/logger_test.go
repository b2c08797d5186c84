package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/cloudnest/internal/observability/context"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeUser, "42")

	WithJob(WithContext(ctx, zap.New(core)), "renewal", "run-9").Info("hello")

	fields := logs.All()[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "user", fields["actor_type"])
	require.Equal(t, "42", fields["actor_id"])
	require.Equal(t, "renewal", fields["job"])
	require.NotContains(t, fields, "trace_id")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	require.Error(t, err)
}

func TestGinMiddlewareEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/api/user/orders", func(c *gin.Context) { c.Status(http.StatusTooManyRequests) })

	req := httptest.NewRequest(http.MethodGet, "/api/user/orders", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, "/api/user/orders", entries[0].ContextMap()["route"])
	require.Equal(t, "abc", entries[0].ContextMap()["request_id"])
}
