package store

import (
	"testing"

	"github.com/dukerupert/mathom/internal/database"
	"github.com/dukerupert/mathom/internal/model"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *UserStore, *ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewUserStore(db), NewProfileStore(db)
}

func TestHouseholdOnboardUser(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, err := us.UpsertByEmail("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	profile, household, err := hs.OnboardUser(u.ID, "Alice", "The Burrow")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if profile.Name != "Alice" {
		t.Errorf("profile name = %q, want %q", profile.Name, "Alice")
	}
	if *profile.UserID != u.ID {
		t.Errorf("profile user_id = %q, want %q", *profile.UserID, u.ID)
	}
	if household.Name != "The Burrow" {
		t.Errorf("household name = %q, want %q", household.Name, "The Burrow")
	}

	m, err := hs.GetMember(household.ID, profile.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatal("expected owner membership, got nil")
	}
	if m.Role != model.RoleOwner {
		t.Errorf("role = %q, want %q", m.Role, model.RoleOwner)
	}
}

func TestHouseholdCreateWithOwner(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	profile, _, err := hs.OnboardUser(u.ID, "Alice", "First")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}

	second, err := hs.CreateWithOwner("Second", "vacation place", profile.ID)
	if err != nil {
		t.Fatalf("create with owner: %v", err)
	}
	if second.Description != "vacation place" {
		t.Errorf("description = %q, want %q", second.Description, "vacation place")
	}

	m, err := hs.GetMember(second.ID, profile.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleOwner {
		t.Fatalf("expected owner membership in second household, got %+v", m)
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs, _, _ := setupHouseholdTestDB(t)

	h, err := hs.GetByID("0f0e724e-94b1-4912-a6be-2a3c0f2b1c55")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestHouseholdUpdate(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	_, household, err := hs.OnboardUser(u.ID, "Alice", "Old Name")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}

	updated, err := hs.Update(household.ID, "New Name", "now with a description")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("name = %q, want %q", updated.Name, "New Name")
	}
	if updated.Description != "now with a description" {
		t.Errorf("description = %q, want %q", updated.Description, "now with a description")
	}
}

func TestHouseholdDeleteCascadesMemberships(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	profile, household, err := hs.OnboardUser(u.ID, "Alice", "Doomed")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}

	if err := hs.Delete(household.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	m, err := hs.GetMember(household.ID, profile.ID)
	if err != nil {
		t.Fatalf("get member after delete: %v", err)
	}
	if m != nil {
		t.Error("expected membership gone after household delete")
	}
	count, err := hs.CountMembershipsForProfile(profile.ID)
	if err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 0 {
		t.Errorf("memberships = %d, want 0", count)
	}
}

func TestHouseholdDeleteSweepsOrphanedProfiles(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	alice, household, err := hs.OnboardUser(u.ID, "Alice", "Doomed")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	tracked, _, err := hs.AddTrackedMember(household.ID, "Kid", "🦊", "#F59E0B", model.RoleMember)
	if err != nil {
		t.Fatalf("add tracked member: %v", err)
	}
	// Alice also belongs to a second household, so only the tracked profile
	// loses its last membership.
	if _, err := hs.CreateWithOwner("Refuge", "", alice.ID); err != nil {
		t.Fatalf("create second household: %v", err)
	}

	if err := hs.Delete(household.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	gone, err := ps.GetByID(tracked.ID)
	if err != nil {
		t.Fatalf("get tracked profile: %v", err)
	}
	if gone != nil {
		t.Error("expected orphaned tracked profile swept with household")
	}
	kept, err := ps.GetByID(alice.ID)
	if err != nil {
		t.Fatalf("get surviving profile: %v", err)
	}
	if kept == nil {
		t.Fatal("expected profile with another household to survive")
	}
}

func TestHouseholdAddMemberDuplicate(t *testing.T) {
	hs, us, ps := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	_, household, _ := hs.OnboardUser(u.ID, "Alice", "The Burrow")
	p, _ := ps.Create("Bob", "🐻", "#10B981", nil)

	if _, err := hs.AddMember(household.ID, p.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := hs.AddMember(household.ID, p.ID, model.RoleAdmin); err == nil {
		t.Fatal("expected error for duplicate membership, got nil")
	}
}

func TestHouseholdAddTrackedMember(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	_, household, _ := hs.OnboardUser(u.ID, "Alice", "The Burrow")

	profile, member, err := hs.AddTrackedMember(household.ID, "Kid", "🧒", "#EF4444", model.RoleMember)
	if err != nil {
		t.Fatalf("add tracked member: %v", err)
	}
	if profile.HasUser() {
		t.Error("tracked member should not have a user")
	}
	if member.Role != model.RoleMember {
		t.Errorf("role = %q, want %q", member.Role, model.RoleMember)
	}
	if member.ProfileID != profile.ID {
		t.Errorf("member profile_id = %q, want %q", member.ProfileID, profile.ID)
	}
}

func TestHouseholdRemoveMember(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	_, household, _ := hs.OnboardUser(u.ID, "Alice", "The Burrow")
	profile, _, err := hs.AddTrackedMember(household.ID, "Kid", "🧒", "#EF4444", model.RoleMember)
	if err != nil {
		t.Fatalf("add tracked member: %v", err)
	}

	if err := hs.RemoveMember(household.ID, profile.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	m, err := hs.GetMember(household.ID, profile.ID)
	if err != nil {
		t.Fatalf("get member after remove: %v", err)
	}
	if m != nil {
		t.Error("expected nil after remove")
	}
}

func TestHouseholdListMembers(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	_, household, _ := hs.OnboardUser(u.ID, "Alice", "The Burrow")
	hs.AddTrackedMember(household.ID, "Kid", "🧒", "#EF4444", model.RoleMember)

	members, err := hs.ListMembers(household.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Role != model.RoleOwner {
		t.Errorf("first member role = %q, want %q", members[0].Role, model.RoleOwner)
	}
}

func TestHouseholdUpdateMemberRole(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	_, household, _ := hs.OnboardUser(u.ID, "Alice", "The Burrow")
	profile, _, _ := hs.AddTrackedMember(household.ID, "Kid", "🧒", "#EF4444", model.RoleMember)

	m, err := hs.UpdateMemberRole(household.ID, profile.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("update member role: %v", err)
	}
	if m.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", m.Role, model.RoleAdmin)
	}
}

func TestHouseholdListMembershipsForProfileOrder(t *testing.T) {
	hs, us, _ := setupHouseholdTestDB(t)

	u, _ := us.UpsertByEmail("alice@example.com", "Alice")
	profile, first, err := hs.OnboardUser(u.ID, "Alice", "First")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if _, err := hs.CreateWithOwner("Second", "", profile.ID); err != nil {
		t.Fatalf("create second: %v", err)
	}

	memberships, err := hs.ListMembershipsForProfile(profile.ID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(memberships))
	}
	if memberships[0].Household.ID != first.ID {
		t.Errorf("first membership = %q, want earliest household %q", memberships[0].Household.ID, first.ID)
	}
	if memberships[0].Role != model.RoleOwner {
		t.Errorf("role = %q, want %q", memberships[0].Role, model.RoleOwner)
	}
}
