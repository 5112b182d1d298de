package auth

import (
	"context"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

type actorKey struct{}

// WithActor stores the authenticated caller in ctx.
func WithActor(ctx context.Context, a *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the caller stored by WithActor, or nil.
func ActorFrom(ctx context.Context) *domain.Actor {
	a, _ := ctx.Value(actorKey{}).(*domain.Actor)
	return a
}
