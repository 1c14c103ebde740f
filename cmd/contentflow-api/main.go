// Package main provides the contentflow API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/contentflow/pkg/cmd"
	"github.com/dukex/contentflow/pkg/log"
	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "contentflow-api",
		Usage:                 "Create workflows and drive them through the content pipeline",
		EnableShellCompletion: true,
		Flags: append(cmd.CommonFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing contentflow API")

			shutdownTracing, err := cmd.SetupTracing(ctx, command.Bool("tracing"), "contentflow-api", logger)
			if err != nil {
				return err
			}
			defer shutdownTracing()

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(registry)

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "contentflow-api", logger)
			if err != nil {
				return err
			}

			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			recorder := cmd.NewRecorder(persistence, eventBus, logger, m)
			defer recorder.Close()

			engine := workflow.NewEngine(logger, persistence.WorkflowRepository(), recorder, workflow.WithMetrics(m))

			return NewAPI(logger, persistence, engine, registry).Start(ctx, int(command.Int("port")))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("api").Error("contentflow-api failed", "error", err)
		os.Exit(1)
	}
}
