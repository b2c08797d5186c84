package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/cloudnest/internal/config"
)

// Config is the observability view of the process: who is logging and where
// traces and metrics go. Values come from config.Config and can be
// overridden by the standard OTEL_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

const (
	defaultServiceName   = "cloudnest"
	defaultSamplingRatio = 0.1
)

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), cfg.AppName, defaultServiceName),
		Environment:          firstNonEmpty(os.Getenv("DEPLOYMENT_ENV"), cfg.Environment),
		Version:              firstNonEmpty(os.Getenv("SERVICE_VERSION"), cfg.AppVersion),
		LogLevel:             lower(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")),
		LogFormat:            lower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),
		OtelEnabled:          envBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		OtelExporterProtocol: lower(firstNonEmpty(
			os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"),
			os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
			"grpc",
		)),
		OtelSamplingRatio: envRatio("OTEL_SAMPLING_RATIO", defaultSamplingRatio),
	}
	return out
}

// Debug turns on caller stacks and verbose gorm logging.
func (c Config) Debug() bool {
	if lower(c.LogLevel) == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func lower(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func envBool(key string, def bool) bool {
	switch lower(os.Getenv(key)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// envRatio reads a sampling ratio, ignoring values outside [0, 1].
func envRatio(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return def
	}
	return parsed
}
