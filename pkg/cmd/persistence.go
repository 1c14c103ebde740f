// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/dukex/contentflow/pkg/persistence/file"
	"github.com/dukex/contentflow/pkg/persistence/postgresql"
	"github.com/dukex/contentflow/pkg/persistence/redisdb"
)

// NewPersistence picks the storage backend from the scheme of databaseURL.
// A URL without a known scheme is treated as a file store directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch provider := parsePersistenceProvider(databaseURL); provider {
	case "postgres":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "redis":
		p, err := redisdb.NewPersistenceFromURL(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		root := strings.TrimPrefix(databaseURL, "file://")

		if err := os.MkdirAll(root, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", root, err)
		}

		logger.WarnContext(ctx, "Using file persistence, not safe for multiple processes", "root", root)

		return file.NewPersistence(root), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	case "redis", "rediss":
		return "redis"
	default:
		return "file"
	}
}
