// Package main provides the stalled workflow monitor.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/contentflow/pkg/cmd"
	"github.com/dukex/contentflow/pkg/log"
	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/monitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "contentflow-monitor",
		Usage:                 "Report workflows that stopped progressing",
		EnableShellCompletion: true,
		Flags: append(cmd.CommonFlags(),
			&cli.DurationFlag{
				Name:    "stall-threshold",
				Usage:   "Time without a transition after which a workflow counts as stalled",
				Value:   monitor.DefaultThreshold,
				Sources: cli.EnvVars("STALL_THRESHOLD"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule of the sweep",
				Value:   monitor.DefaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "metrics-port",
				Usage:   "Port serving /metrics (0 disables it)",
				Value:   9092,
				Sources: cli.EnvVars("METRICS_PORT"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit",
			},
		),
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("monitor").Error("contentflow-monitor failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("contentflow-monitor")

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()

	m := monitor.New(persistence.WorkflowRepository(), logger,
		monitor.WithThreshold(command.Duration("stall-threshold")),
		monitor.WithMetrics(metrics.New(registry)),
	)

	if command.Bool("once") {
		_, err := m.Sweep(ctx)

		return err
	}

	if port := int(command.Int("metrics-port")); port > 0 {
		server := &http.Server{
			Addr:              ":" + strconv.Itoa(port),
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.ErrorContext(ctx, "Metrics server failed", "error", err)
			}
		}()

		defer func() { _ = server.Shutdown(context.WithoutCancel(ctx)) }()
	}

	err = m.Start(ctx, command.String("schedule"))
	if err != nil {
		return err
	}

	<-ctx.Done()
	m.Stop()
	logger.InfoContext(ctx, "Stall monitor stopped")

	return nil
}
