package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/contentflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

// CommonFlags are accepted by every contentflow binary.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (postgres://, redis:// or a directory)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel, none)",
			Value:   "none",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP (configured by the standard OTEL_* variables)",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
}

// SetupTracing installs a tracer provider when enabled and returns its
// shutdown function.
func SetupTracing(ctx context.Context, enabled bool, service string, logger *slog.Logger) (func(), error) {
	if !enabled {
		return func() {}, nil
	}

	tp, err := otelhelper.NewTracerProvider(ctx, service)
	if err != nil {
		return nil, err
	}

	return func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}, nil
}
