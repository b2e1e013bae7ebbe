package observability

import (
	"github.com/smallbiznis/communa/internal/config"
)

// Config captures the observability settings shared by tracing and metrics.
type Config struct {
	ServiceName          string
	Version              string
	Environment          string
	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func (c Config) Debug() bool {
	return c.Environment != "production"
}

// LoadConfig derives observability settings from application config.
func LoadConfig(cfg config.Config) Config {
	return Config{
		ServiceName:          cfg.AppName,
		Version:              cfg.AppVersion,
		Environment:          cfg.Environment,
		OtelEnabled:          cfg.OtelEnabled,
		OtelExporterEndpoint: cfg.OTLPEndpoint,
		OtelExporterProtocol: cfg.OTLPProtocol,
		OtelSamplingRatio:    cfg.OtelSamplingRatio,
	}
}
