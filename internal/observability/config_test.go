package observability

import (
	"testing"

	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFallsBackToAppConfig(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("DEPLOYMENT_ENV", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := LoadConfig(config.Config{
		AppName:      "cloudnest-api",
		AppVersion:   "1.2.3",
		Environment:  "production",
		OTLPEndpoint: "collector:4317",
	})
	require.Equal(t, "cloudnest-api", cfg.ServiceName)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "1.2.3", cfg.Version)
	require.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	require.Equal(t, "grpc", cfg.OtelExporterProtocol)
	require.Equal(t, 0.1, cfg.OtelSamplingRatio)
	require.False(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "cloudnest-scheduler")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "1.5")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := LoadConfig(config.Config{AppName: "cloudnest"})
	require.Equal(t, "cloudnest-scheduler", cfg.ServiceName)
	require.Equal(t, "http", cfg.OtelExporterProtocol)
	require.Equal(t, 0.1, cfg.OtelSamplingRatio, "out of range ratio is ignored")
	require.True(t, cfg.OtelEnabled)
	require.True(t, cfg.Debug())
}

func TestDebugInDevEnvironments(t *testing.T) {
	require.True(t, Config{Environment: "local"}.Debug())
	require.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
