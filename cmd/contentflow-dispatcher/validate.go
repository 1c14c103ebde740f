package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dukex/contentflow/pkg/events"
	"github.com/urfave/cli/v3"
)

// NewValidateCommand checks stage completion payloads against the message
// schema, reading each file argument or stdin.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Validate stage completion messages",
		ArgsUsage: "[file...]",
		Action: func(_ context.Context, command *cli.Command) error {
			return validateFiles(command.Args().Slice(), os.Stdin, command.Root().Writer)
		},
	}
}

func validateFiles(paths []string, stdin io.Reader, out io.Writer) error {
	if len(paths) == 0 {
		payload, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}

		return report(out, "stdin", payload)
	}

	var failed int

	for _, path := range paths {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if report(out, path, payload) != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d messages are invalid", failed, len(paths))
	}

	return nil
}

func report(out io.Writer, name string, payload []byte) error {
	err := events.ValidateStageCompleted(payload)
	if err != nil {
		_, _ = fmt.Fprintf(out, "%s: %v\n", name, err)

		return err
	}

	_, _ = fmt.Fprintf(out, "%s: ok\n", name)

	return nil
}
