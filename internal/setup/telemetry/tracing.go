package telemetry

import (
	"context"

	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// ServiceVersion is reported as the service.version resource attribute.
const ServiceVersion = config.RepositoryVersion

// ConfigureTracing installs the Uptrace OpenTelemetry exporters when a DSN is configured.
// The returned function flushes and shuts them down.
func ConfigureTracing(cfg *config.Tracing, serviceType ServiceType, logger *zap.Logger) func(context.Context) {
	if cfg.DSN == "" {
		logger.Debug("Tracing disabled")
		return func(context.Context) {}
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName("draftguard-"+serviceType.String()),
		uptrace.WithServiceVersion(ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	logger.Info("Tracing enabled", zap.String("environment", cfg.Environment))

	return func(ctx context.Context) {
		if err := uptrace.Shutdown(ctx); err != nil {
			logger.Error("Failed to shut down tracing", zap.Error(err))
		}
	}
}
