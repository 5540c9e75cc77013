package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/store"
)

// ErrUnauthenticated covers every way a request can fail to prove an
// identity: missing, malformed, expired or forged tokens, tokens without an
// email, and emails outside the allow-list. Callers get a 401 either way.
var ErrUnauthenticated = errors.New("unauthenticated")

// The fixed development identity. The bypass path upserts it on every
// request, so the row exists whichever instance served the first call.
const (
	devEmail = "dev@localhost"
	devName  = "Dev User"
)

type Config struct {
	// Secret verifies HS256 bearer tokens minted by the auth front end.
	Secret string
	// AllowedEmails is the sign-in allow-list. An empty list rejects
	// everyone; there is no open mode.
	AllowedEmails []string
	// DevBypass skips token verification and signs every request in as the
	// development user. main refuses to enable it in production.
	DevBypass bool
}

// Resolver turns request credentials into a local User row.
type Resolver struct {
	users  *store.UserStore
	cfg    Config
	logger *slog.Logger
}

func NewResolver(users *store.UserStore, cfg Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		users:  users,
		cfg:    cfg,
		logger: logger.With("component", "identity"),
	}
}

// Resolve verifies the bearer token, checks the allow-list, and upserts the
// local user keyed by email, syncing the display name from the token. Any
// verification failure returns ErrUnauthenticated; only storage failures
// surface as other errors.
func (r *Resolver) Resolve(rawToken string) (*model.User, error) {
	if r.cfg.DevBypass {
		user, err := r.users.UpsertByEmail(devEmail, devName)
		if err != nil {
			return nil, fmt.Errorf("upsert dev user: %w", err)
		}
		return user, nil
	}

	if rawToken == "" {
		return nil, ErrUnauthenticated
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		return []byte(r.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}

	email, _ := claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUnauthenticated
	}
	if !r.allowed(email) {
		r.logger.Warn("sign-in rejected by allow-list", "email", email)
		return nil, ErrUnauthenticated
	}

	name, _ := claims["name"].(string)
	if name == "" {
		name = email
	}

	user, err := r.users.UpsertByEmail(email, name)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (r *Resolver) allowed(email string) bool {
	for _, e := range r.cfg.AllowedEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}
