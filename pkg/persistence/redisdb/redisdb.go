// Package redisdb provides Redis persistence for workflows and their transition history.
//
// Each workflow is a hash. State changes run as a Lua script so the compare
// and the write happen atomically on the server.
package redisdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/contentflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "contentflow"

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client         redis.UniversalClient
	logger         *slog.Logger
	prefix         string
	workflowRepo   *WorkflowRepository
	transitionRepo *TransitionRepository
}

// Option configures a Persistence.
type Option func(*Persistence)

// WithPrefix sets the key prefix. Default is "contentflow".
func WithPrefix(prefix string) Option {
	return func(p *Persistence) {
		p.prefix = prefix
	}
}

// NewPersistence creates a Redis-backed persistence layer on an existing client.
func NewPersistence(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *Persistence {
	p := &Persistence{
		client: client,
		logger: logger,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(p)
	}

	keys := keyspace{prefix: p.prefix}
	p.workflowRepo = NewWorkflowRepository(client, logger, keys)
	p.transitionRepo = NewTransitionRepository(client, keys)

	return p
}

// NewPersistenceFromURL connects to the Redis server described by a redis:// URL.
func NewPersistenceFromURL(ctx context.Context, logger *slog.Logger, url string, opts ...Option) (*Persistence, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewPersistence(client, logger, opts...), nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// WorkflowRepository returns the workflow repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// TransitionRepository returns the audit repository.
func (p *Persistence) TransitionRepository() persistence.TransitionRepository {
	return p.transitionRepo
}

type keyspace struct {
	prefix string
}

func (k keyspace) workflow(id string) string {
	return fmt.Sprintf("%s:workflow:%s", k.prefix, id)
}

// transitions lives outside the workflow namespace so that no workflow id can
// address a history list.
func (k keyspace) transitions(id string) string {
	return fmt.Sprintf("%s:transitions:%s", k.prefix, id)
}

func (k keyspace) organization(org string) string {
	return fmt.Sprintf("%s:organization:%s:workflows", k.prefix, org)
}

// active indexes non-terminal workflows by last update, for stall detection.
func (k keyspace) active() string {
	return k.prefix + ":workflows:active"
}
