package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

// HouseholdHandler covers household metadata and membership management.
// What a role may do comes from authz.CapabilitiesFor; the owner role is
// fixed at creation and immutable in both directions.
type HouseholdHandler struct {
	households *store.HouseholdStore
	profiles   *store.ProfileStore
	logger     *slog.Logger
}

func NewHouseholdHandler(hs *store.HouseholdStore, ps *store.ProfileStore, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: hs, profiles: ps, logger: logger}
}

type householdRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create adds another household with the caller as owner. The first
// household comes from onboarding; this is for everyone's second one.
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	var req householdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Household name is required")
		return
	}

	household, err := h.households.CreateWithOwner(req.Name, req.Description, c.Profile.ID)
	if err != nil {
		h.logger.Error("create household", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to create household")
		return
	}
	respond.JSON(w, http.StatusCreated, toHouseholdDTO(*household))
}

func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	household, err := h.households.GetByID(id)
	if err != nil {
		h.logger.Error("get household", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if household == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if !authz.CapabilitiesFor(c.RoleIn(id)).CanEditHousehold {
		respond.Error(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req householdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Household name is required")
		return
	}

	updated, err := h.households.Update(id, req.Name, req.Description)
	if err != nil {
		h.logger.Error("update household", "household_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to update household")
		return
	}
	respond.JSON(w, http.StatusOK, toHouseholdDTO(*updated))
}

// Delete tears a household down. Owner only, and never the caller's only
// household: their profile must land somewhere.
func (h *HouseholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	household, err := h.households.GetByID(id)
	if err != nil {
		h.logger.Error("get household", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if household == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if !authz.CapabilitiesFor(c.RoleIn(id)).CanDeleteHousehold {
		respond.Error(w, http.StatusForbidden, "Forbidden")
		return
	}

	count, err := h.households.CountMembershipsForProfile(c.Profile.ID)
	if err != nil {
		h.logger.Error("count memberships", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if count <= 1 {
		respond.Error(w, http.StatusBadRequest, "Cannot delete your only household")
		return
	}

	if err := h.households.Delete(id); err != nil {
		h.logger.Error("delete household", "household_id", id, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to delete household")
		return
	}
	h.logger.Info("household deleted", "household_id", id, "by_profile", c.Profile.ID)
	respond.JSON(w, http.StatusOK, nil)
}

type addMemberRequest struct {
	// ProfileID attaches an existing profile; leave it empty and set Name to
	// create a tracked member instead.
	ProfileID   string `json:"profileId"`
	Name        string `json:"name"`
	AvatarEmoji string `json:"avatarEmoji"`
	Color       string `json:"color"`
	Role        string `json:"role"`
}

func (h *HouseholdHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	householdID, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	household, err := h.households.GetByID(householdID)
	if err != nil {
		h.logger.Error("get household", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if household == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if !authz.CapabilitiesFor(c.RoleIn(householdID)).CanManageMembers {
		respond.Error(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	role := req.Role
	if role == "" {
		role = model.RoleMember
	}
	// Ownership is granted at household creation and nowhere else.
	if role == model.RoleOwner || !model.ValidRole(role) {
		respond.Error(w, http.StatusBadRequest, "Invalid role")
		return
	}

	if req.ProfileID != "" {
		h.addExistingMember(w, householdID, req.ProfileID, role)
		return
	}
	h.addTrackedMember(w, householdID, req, role)
}

func (h *HouseholdHandler) addExistingMember(w http.ResponseWriter, householdID, profileID, role string) {
	if err := uuid.Validate(profileID); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	profile, err := h.profiles.GetByID(profileID)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if profile == nil {
		respond.Error(w, http.StatusBadRequest, "Profile not found")
		return
	}
	existing, err := h.households.GetMember(householdID, profileID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing != nil {
		respond.Error(w, http.StatusConflict, "Already a member")
		return
	}

	member, err := h.households.AddMember(householdID, profileID, role)
	if err != nil {
		h.logger.Error("add member", "household_id", householdID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to add member")
		return
	}
	respond.JSON(w, http.StatusCreated, memberDTO{Profile: toProfileDTO(*profile), Role: member.Role})
}

func (h *HouseholdHandler) addTrackedMember(w http.ResponseWriter, householdID string, req addMemberRequest, role string) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respond.Error(w, http.StatusBadRequest, "Member name is required")
		return
	}

	profile, member, err := h.households.AddTrackedMember(householdID, name, req.AvatarEmoji, req.Color, role)
	if err != nil {
		h.logger.Error("add tracked member", "household_id", householdID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to add member")
		return
	}
	respond.JSON(w, http.StatusCreated, memberDTO{Profile: toProfileDTO(*profile), Role: member.Role})
}

type updateMemberRequest struct {
	Role string `json:"role"`
}

func (h *HouseholdHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	householdID, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	profileID, err := parseIDParam(r, "profileId")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	if !authz.CapabilitiesFor(c.RoleIn(householdID)).CanManageMembers {
		respond.Error(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	// The owner role never changes hands: not granted, not revoked.
	if req.Role == model.RoleOwner || !model.ValidRole(req.Role) {
		respond.Error(w, http.StatusBadRequest, "Invalid role")
		return
	}

	member, err := h.households.GetMember(householdID, profileID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if member == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if member.Role == model.RoleOwner {
		respond.Error(w, http.StatusBadRequest, "Cannot change the owner's role")
		return
	}

	updated, err := h.households.UpdateMemberRole(householdID, profileID, req.Role)
	if err != nil {
		h.logger.Error("update member role", "household_id", householdID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to update member")
		return
	}
	profile, err := h.profiles.GetByID(profileID)
	if err != nil || profile == nil {
		h.logger.Error("get profile after role update", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, memberDTO{Profile: toProfileDTO(*profile), Role: updated.Role})
}

// RemoveMember takes a profile out of a household. The owner is immune. A
// tracked profile losing its last membership is deleted outright; removing a
// user-backed profile's last membership is refused, because its user could
// never onboard again while the profile exists.
func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	householdID, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	profileID, err := parseIDParam(r, "profileId")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	if !authz.CapabilitiesFor(c.RoleIn(householdID)).CanManageMembers {
		respond.Error(w, http.StatusForbidden, "Forbidden")
		return
	}

	member, err := h.households.GetMember(householdID, profileID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if member == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if member.Role == model.RoleOwner {
		respond.Error(w, http.StatusBadRequest, "Cannot remove the household owner")
		return
	}

	profile, err := h.profiles.GetByID(profileID)
	if err != nil || profile == nil {
		h.logger.Error("get profile", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	count, err := h.households.CountMembershipsForProfile(profileID)
	if err != nil {
		h.logger.Error("count memberships", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if count <= 1 {
		if profile.HasUser() {
			respond.Error(w, http.StatusBadRequest, "Cannot remove a member's last household")
			return
		}
		// Deleting the profile cascades the membership and any owner rows.
		if err := h.profiles.Delete(profileID); err != nil {
			h.logger.Error("delete tracked profile", "profile_id", profileID, "error", err)
			respond.Error(w, http.StatusInternalServerError, "Failed to remove member")
			return
		}
		respond.JSON(w, http.StatusOK, nil)
		return
	}

	if err := h.households.RemoveMember(householdID, profileID); err != nil {
		h.logger.Error("remove member", "household_id", householdID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to remove member")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}
