// Package main provides the stage completion dispatcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/contentflow/pkg/cmd"
	"github.com/dukex/contentflow/pkg/dispatcher"
	"github.com/dukex/contentflow/pkg/log"
	"github.com/dukex/contentflow/pkg/workflow"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "contentflow-dispatcher",
		Usage:                 "Apply stage completion messages to workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewValidateCommand(),
		},
		Flags: append(cmd.CommonFlags(),
			&cli.StringFlag{
				Name:    "dispatcher-id",
				Aliases: []string{"id"},
				Usage:   "Custom dispatcher ID (auto-generated if not provided)",
				Sources: cli.EnvVars("DISPATCHER_ID"),
			},
		),
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("dispatcher").Error("contentflow-dispatcher failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	dispatcherID := command.String("dispatcher-id")
	if dispatcherID == "" {
		dispatcherID = "dispatcher-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("contentflow-dispatcher").With("dispatcher_id", dispatcherID)

	logger.InfoContext(ctx, "Initializing contentflow dispatcher")

	shutdownTracing, err := cmd.SetupTracing(ctx, command.Bool("tracing"), "contentflow-dispatcher", logger)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "contentflow-dispatcher", logger)
	if err != nil {
		return err
	}

	if eventBus == nil {
		return fmt.Errorf("the dispatcher needs an event bus, got %q", command.String("event-bus"))
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	recorder := cmd.NewRecorder(persistence, eventBus, logger, nil)
	defer recorder.Close()

	// Runs before the recorder closes, so commits made by in-flight
	// handlers still reach the audit log.
	defer eventBus.Drain()

	engine := workflow.NewEngine(logger, persistence.WorkflowRepository(), recorder)

	err = dispatcher.New(dispatcherID, engine, eventBus, logger).Start(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Shutting down gracefully")

	return nil
}
