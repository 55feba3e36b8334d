package api

import (
	"context"
	"net/http"

	"github.com/resolvehq/tribunal-api/models"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ContextWithActor stores the authenticated actor on the request context
func ContextWithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the authenticated actor set by the auth middleware
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	return actor, ok
}

// Actor is a convenience wrapper over ActorFromContext for handlers
func Actor(r *http.Request) (models.Actor, bool) {
	return ActorFromContext(r.Context())
}
