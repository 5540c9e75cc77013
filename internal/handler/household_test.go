package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
)

func newHouseholdHandler(env *handlerEnv) *HouseholdHandler {
	return NewHouseholdHandler(env.households, env.profiles, slog.Default())
}

// join adds an existing caller's profile to a household with the given role.
func (env *handlerEnv) join(t *testing.T, householdID string, c *authz.Context, role string) {
	t.Helper()
	if _, err := env.households.AddMember(householdID, c.Profile.ID, role); err != nil {
		t.Fatalf("add member: %v", err)
	}
}

func TestHouseholdCreateSecond(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodPost, "/api/households", `{"name":"Beach House","description":"summers"}`)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	data := dataMap(t, rec)
	id := data["id"].(string)

	c = env.resolve(t, c.User.ID, id)
	if c.Role != model.RoleOwner {
		t.Errorf("role in new household = %q, want owner", c.Role)
	}
	if c.ActiveHousehold.Name != "Beach House" {
		t.Errorf("active household = %q, want Beach House", c.ActiveHousehold.Name)
	}
}

func TestHouseholdUpdateForbiddenForMember(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	alice := env.onboard(t, "alice@example.com", "Alice", "The Burrow")
	bob := env.onboard(t, "bob@example.com", "Bob", "Bob's Place")
	env.join(t, alice.ActiveHousehold.ID, bob, model.RoleMember)
	bob = env.resolve(t, bob.User.ID, alice.ActiveHousehold.ID)

	req := env.request(bob, http.MethodPut, "/api/households/"+alice.ActiveHousehold.ID, `{"name":"Taken Over"}`)
	req.SetPathValue("id", alice.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHouseholdUpdate(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodPut, "/api/households/"+c.ActiveHousehold.ID, `{"name":"Bag End","description":"under the hill"}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	data := dataMap(t, rec)
	if data["name"] != "Bag End" {
		t.Errorf("name = %v, want Bag End", data["name"])
	}
	if data["description"] != "under the hill" {
		t.Errorf("description = %v, want under the hill", data["description"])
	}
}

func TestHouseholdUpdateEmptyName(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodPut, "/api/households/"+c.ActiveHousehold.ID, `{"name":""}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHouseholdDeleteOnlyHousehold(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodDelete, "/api/households/"+c.ActiveHousehold.ID, "")
	req.SetPathValue("id", c.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	got := decodeEnvelope(t, rec)
	if got["error"] != "Cannot delete your only household" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestHouseholdDeleteRequiresOwner(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	alice := env.onboard(t, "alice@example.com", "Alice", "The Burrow")
	bob := env.onboard(t, "bob@example.com", "Bob", "Bob's Place")
	env.join(t, alice.ActiveHousehold.ID, bob, model.RoleAdmin)
	bob = env.resolve(t, bob.User.ID, alice.ActiveHousehold.ID)

	req := env.request(bob, http.MethodDelete, "/api/households/"+alice.ActiveHousehold.ID, "")
	req.SetPathValue("id", alice.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHouseholdDeleteSecondHousehold(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	second, err := env.households.CreateWithOwner("Beach House", "", c.Profile.ID)
	if err != nil {
		t.Fatalf("create second household: %v", err)
	}
	c = env.resolve(t, c.User.ID, "")

	req := env.request(c, http.MethodDelete, "/api/households/"+second.ID, "")
	req.SetPathValue("id", second.ID)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	count, err := env.households.CountMembershipsForProfile(c.Profile.ID)
	if err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 1 {
		t.Errorf("memberships = %d, want 1", count)
	}
}

func TestAddTrackedMember(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodPost, "/api/households/"+c.ActiveHousehold.ID+"/members",
		`{"name":"Kid","avatarEmoji":"🦊","color":"#F59E0B"}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.AddMember(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	data := dataMap(t, rec)
	if data["role"] != model.RoleMember {
		t.Errorf("role = %v, want member", data["role"])
	}
	profile := data["profile"].(map[string]any)
	if profile["hasUser"] != false {
		t.Errorf("hasUser = %v, want false", profile["hasUser"])
	}

	c = env.resolve(t, c.User.ID, "")
	if len(c.HouseholdProfiles) != 2 {
		t.Errorf("roster size = %d, want 2", len(c.HouseholdProfiles))
	}
}

func TestAddMemberNeverGrantsOwner(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodPost, "/api/households/"+c.ActiveHousehold.ID+"/members",
		`{"name":"Usurper","role":"owner"}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.AddMember(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	got := decodeEnvelope(t, rec)
	if got["error"] != "Invalid role" {
		t.Errorf("error = %v, want Invalid role", got["error"])
	}
}

func TestAddExistingMemberAndDuplicate(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	alice := env.onboard(t, "alice@example.com", "Alice", "The Burrow")
	bob := env.onboard(t, "bob@example.com", "Bob", "Bob's Place")

	body := `{"profileId":"` + bob.Profile.ID + `","role":"admin"}`
	req := env.request(alice, http.MethodPost, "/api/households/"+alice.ActiveHousehold.ID+"/members", body)
	req.SetPathValue("id", alice.ActiveHousehold.ID)
	rec := httptest.NewRecorder()
	h.AddMember(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	data := dataMap(t, rec)
	if data["role"] != model.RoleAdmin {
		t.Errorf("role = %v, want admin", data["role"])
	}

	req = env.request(alice, http.MethodPost, "/api/households/"+alice.ActiveHousehold.ID+"/members", body)
	req.SetPathValue("id", alice.ActiveHousehold.ID)
	rec = httptest.NewRecorder()
	h.AddMember(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")
	tracked, _, err := env.households.AddTrackedMember(c.ActiveHousehold.ID, "Kid", "🦊", "#F59E0B", model.RoleMember)
	if err != nil {
		t.Fatalf("add tracked member: %v", err)
	}

	req := env.request(c, http.MethodPut,
		"/api/households/"+c.ActiveHousehold.ID+"/members/"+tracked.ID, `{"role":"admin"}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	req.SetPathValue("profileId", tracked.ID)
	rec := httptest.NewRecorder()
	h.UpdateMemberRole(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	data := dataMap(t, rec)
	if data["role"] != model.RoleAdmin {
		t.Errorf("role = %v, want admin", data["role"])
	}
}

func TestUpdateMemberRoleOwnerImmutable(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	// Demoting the owner.
	req := env.request(c, http.MethodPut,
		"/api/households/"+c.ActiveHousehold.ID+"/members/"+c.Profile.ID, `{"role":"member"}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	req.SetPathValue("profileId", c.Profile.ID)
	rec := httptest.NewRecorder()
	h.UpdateMemberRole(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("demote status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// Promoting someone else to owner.
	tracked, _, _ := env.households.AddTrackedMember(c.ActiveHousehold.ID, "Kid", "", "", model.RoleMember)
	req = env.request(c, http.MethodPut,
		"/api/households/"+c.ActiveHousehold.ID+"/members/"+tracked.ID, `{"role":"owner"}`)
	req.SetPathValue("id", c.ActiveHousehold.ID)
	req.SetPathValue("profileId", tracked.ID)
	rec = httptest.NewRecorder()
	h.UpdateMemberRole(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("promote status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRemoveMemberOwnerImmune(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	req := env.request(c, http.MethodDelete,
		"/api/households/"+c.ActiveHousehold.ID+"/members/"+c.Profile.ID, "")
	req.SetPathValue("id", c.ActiveHousehold.ID)
	req.SetPathValue("profileId", c.Profile.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	got := decodeEnvelope(t, rec)
	if got["error"] != "Cannot remove the household owner" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestRemoveTrackedMemberDeletesProfile(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	c := env.onboard(t, "alice@example.com", "Alice", "The Burrow")
	tracked, _, err := env.households.AddTrackedMember(c.ActiveHousehold.ID, "Kid", "", "", model.RoleMember)
	if err != nil {
		t.Fatalf("add tracked member: %v", err)
	}

	req := env.request(c, http.MethodDelete,
		"/api/households/"+c.ActiveHousehold.ID+"/members/"+tracked.ID, "")
	req.SetPathValue("id", c.ActiveHousehold.ID)
	req.SetPathValue("profileId", tracked.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	gone, err := env.profiles.GetByID(tracked.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if gone != nil {
		t.Error("expected tracked profile deleted with its last membership")
	}
}

func TestRemoveUserBackedLastMembershipRefused(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	alice := env.onboard(t, "alice@example.com", "Alice", "The Burrow")

	// Bob's profile is attached to his user but The Burrow is his only
	// household once his own is gone; simulate by creating the profile
	// directly, membership in The Burrow only.
	bobUser, _ := env.users.UpsertByEmail("bob@example.com", "Bob")
	bobProfile, err := env.profiles.Create("Bob", "", "", &bobUser.ID)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := env.households.AddMember(alice.ActiveHousehold.ID, bobProfile.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}

	req := env.request(alice, http.MethodDelete,
		"/api/households/"+alice.ActiveHousehold.ID+"/members/"+bobProfile.ID, "")
	req.SetPathValue("id", alice.ActiveHousehold.ID)
	req.SetPathValue("profileId", bobProfile.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	got := decodeEnvelope(t, rec)
	if got["error"] != "Cannot remove a member's last household" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestRemoveUserBackedWithAnotherHousehold(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := newHouseholdHandler(env)
	alice := env.onboard(t, "alice@example.com", "Alice", "The Burrow")
	bob := env.onboard(t, "bob@example.com", "Bob", "Bob's Place")
	env.join(t, alice.ActiveHousehold.ID, bob, model.RoleMember)

	req := env.request(alice, http.MethodDelete,
		"/api/households/"+alice.ActiveHousehold.ID+"/members/"+bob.Profile.ID, "")
	req.SetPathValue("id", alice.ActiveHousehold.ID)
	req.SetPathValue("profileId", bob.Profile.ID)
	rec := httptest.NewRecorder()
	h.RemoveMember(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	kept, err := env.profiles.GetByID(bob.Profile.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if kept == nil {
		t.Fatal("expected profile to survive removal from one of two households")
	}
	m, err := env.households.GetMember(alice.ActiveHousehold.ID, bob.Profile.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Error("expected membership removed")
	}
}
