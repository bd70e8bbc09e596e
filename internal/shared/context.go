package shared

import (
	"context"
	"strings"
)

type actorContextKey struct{}

// ContextWithActorEmail stores the acting user's email in context.
func ContextWithActorEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.ToLower(strings.TrimSpace(email)))
}

// ActorEmailFromContext extracts the acting user's email; empty when absent.
func ActorEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(actorContextKey{}).(string)
	return email
}
