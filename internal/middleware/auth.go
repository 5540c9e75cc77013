package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/directory"
	"github.com/dukerupert/mathom/internal/identity"
	"github.com/dukerupert/mathom/internal/respond"
)

// RequireUser resolves the bearer token to a user and attaches it to the
// request context. Anything the resolver rejects is a 401; resolver
// internals are never surfaced to the client.
func RequireUser(resolver *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(bearerToken(r))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := authz.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireContext resolves the caller's profile, memberships and active
// household. It runs after RequireUser. A user without a profile gets the
// onboarding 404 so clients know to start onboarding rather than retry.
func RequireContext(dir *directory.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := authz.UserFrom(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			c, err := dir.Resolve(user, requestedHousehold(r))
			if err != nil {
				if errors.Is(err, directory.ErrNeedsOnboarding) {
					respond.NeedsOnboarding(w)
					return
				}
				respond.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := authz.WithContext(r.Context(), c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// requestedHousehold reads the active-household selection. The query
// parameter wins; the header exists for clients that keep the selection out
// of URLs.
func requestedHousehold(r *http.Request) string {
	if id := r.URL.Query().Get("householdId"); id != "" {
		return id
	}
	return r.Header.Get("X-Household-Id")
}
