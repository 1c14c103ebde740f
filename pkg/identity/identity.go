// Package identity resolves the actor of a request.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
)

const (
	OrganizationHeader = "X-Organization-ID"
	UserHeader         = "X-User-ID"
)

var ErrMissingOrganization = errors.New("organization is required")

// Actor is the caller of an operation. UserID is empty for automated callers
// such as stage workers.
type Actor struct {
	UserID         string
	OrganizationID string
}

// IsHuman reports whether the actor identifies a user.
func (a Actor) IsHuman() bool {
	return a.UserID != ""
}

// TriggeredBy returns the user id for audit records, nil for automated actors.
func (a Actor) TriggeredBy() *string {
	if !a.IsHuman() {
		return nil
	}

	id := a.UserID

	return &id
}

// Resolver extracts the actor from an HTTP request.
type Resolver interface {
	Resolve(c fiber.Ctx) (Actor, error)
}

// HeaderResolver trusts identity headers set by an upstream gateway.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(c fiber.Ctx) (Actor, error) {
	actor := Actor{
		UserID:         strings.TrimSpace(c.Get(UserHeader)),
		OrganizationID: strings.TrimSpace(c.Get(OrganizationHeader)),
	}

	if actor.OrganizationID == "" {
		return Actor{}, ErrMissingOrganization
	}

	return actor, nil
}

type contextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)

	return actor, ok
}
