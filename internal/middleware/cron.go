package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dukerupert/mathom/internal/respond"
)

// RequireCronSecret guards the cron endpoints. In production the bearer
// token must match the configured secret; an unset secret locks the
// endpoints rather than opening them. Outside production the check is
// skipped so local runs can trigger jobs by hand.
func RequireCronSecret(secret, env string) func(http.Handler) http.Handler {
	production := strings.EqualFold(strings.TrimSpace(env), "production")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if production {
				token := bearerToken(r)
				if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
					respond.Error(w, http.StatusUnauthorized, "Unauthorized")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
