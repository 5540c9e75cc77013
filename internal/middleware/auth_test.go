package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/database"
	"github.com/dukerupert/mathom/internal/directory"
	"github.com/dukerupert/mathom/internal/identity"
	"github.com/dukerupert/mathom/internal/store"
)

const testSecret = "middleware-test-secret"

type middlewareEnv struct {
	users      *store.UserStore
	households *store.HouseholdStore
	resolver   *identity.Resolver
	dir        *directory.Service
}

func setupMiddleware(t *testing.T) *middlewareEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	return &middlewareEnv{
		users:      users,
		households: store.NewHouseholdStore(db),
		resolver: identity.NewResolver(users, identity.Config{
			Secret:        testSecret,
			AllowedEmails: []string{"alice@example.com"},
		}, slog.Default()),
		dir: directory.NewService(store.NewProfileStore(db), store.NewHouseholdStore(db), slog.Default()),
	}
}

func (env *middlewareEnv) token(t *testing.T, email, name string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"email": email,
		"name":  name,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return got
}

func TestRequireUserMissingToken(t *testing.T) {
	env := setupMiddleware(t)

	handler := RequireUser(env.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/context", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := decodeEnvelope(t, rec); got["success"] != false {
		t.Errorf("success = %v, want false", got["success"])
	}
}

func TestRequireUserBadToken(t *testing.T) {
	env := setupMiddleware(t)

	handler := RequireUser(env.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/context", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireUserAttachesUser(t *testing.T) {
	env := setupMiddleware(t)

	handler := RequireUser(env.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := authz.UserFrom(r.Context())
		if !ok {
			t.Fatal("expected user in request context")
		}
		if u.Email != "alice@example.com" {
			t.Errorf("email = %q, want alice@example.com", u.Email)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/context", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "alice@example.com", "Alice"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireContextNeedsOnboarding(t *testing.T) {
	env := setupMiddleware(t)

	chain := RequireUser(env.resolver)(RequireContext(env.dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})))

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "alice@example.com", "Alice"))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := decodeEnvelope(t, rec); got["needsOnboarding"] != true {
		t.Errorf("needsOnboarding = %v, want true", got["needsOnboarding"])
	}
}

func TestRequireContextResolvesActiveHousehold(t *testing.T) {
	env := setupMiddleware(t)

	u, err := env.users.UpsertByEmail("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if _, _, err := env.households.OnboardUser(u.ID, "Alice", "Home"); err != nil {
		t.Fatalf("onboard: %v", err)
	}

	chain := RequireUser(env.resolver)(RequireContext(env.dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := authz.FromContext(r.Context())
		if !ok {
			t.Fatal("expected authz context")
		}
		if c.ActiveHousehold.Name != "Home" {
			t.Errorf("active household = %q, want Home", c.ActiveHousehold.Name)
		}
		if c.Role != "owner" {
			t.Errorf("role = %q, want owner", c.Role)
		}
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "alice@example.com", "Alice"))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireContextHouseholdQueryParam(t *testing.T) {
	env := setupMiddleware(t)

	u, _ := env.users.UpsertByEmail("alice@example.com", "Alice")
	profile, _, err := env.households.OnboardUser(u.ID, "Alice", "Home")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	second, err := env.households.CreateWithOwner("Beach house", "", profile.ID)
	if err != nil {
		t.Fatalf("create second household: %v", err)
	}

	chain := RequireUser(env.resolver)(RequireContext(env.dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := authz.FromContext(r.Context())
		if c.ActiveHousehold.ID != second.ID {
			t.Errorf("active household = %q, want %q", c.ActiveHousehold.ID, second.ID)
		}
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/api/dashboard?householdId="+second.ID, nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "alice@example.com", "Alice"))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireContextWithoutUser(t *testing.T) {
	env := setupMiddleware(t)

	handler := RequireContext(env.dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
