package users

import (
	"net/http"

	"github.com/accounting-app/accounting-app/internal/shared"
)

// ActorHeader names the header carrying the acting user's email.
const ActorHeader = "X-User-Email"

// ActorMiddleware copies the acting user's email from the request header
// into the request context.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email := r.Header.Get(ActorHeader); email != "" {
			r = r.WithContext(shared.ContextWithActorEmail(r.Context(), email))
		}
		next.ServeHTTP(w, r)
	})
}
