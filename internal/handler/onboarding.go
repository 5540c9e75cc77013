package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

// OnboardingHandler turns a first-time user into a profile owning a fresh
// household, in one transaction. It runs behind RequireUser only: the caller
// has no resolvable context yet.
type OnboardingHandler struct {
	profiles   *store.ProfileStore
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewOnboardingHandler(ps *store.ProfileStore, hs *store.HouseholdStore, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{profiles: ps, households: hs, logger: logger}
}

type onboardingRequest struct {
	ProfileName   string `json:"profileName"`
	HouseholdName string `json:"householdName"`
}

type onboardingResponse struct {
	Profile   profileDTO   `json:"profile"`
	Household householdDTO `json:"household"`
}

func (h *OnboardingHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	user, ok := authz.UserFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req onboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.ProfileName = strings.TrimSpace(req.ProfileName)
	req.HouseholdName = strings.TrimSpace(req.HouseholdName)
	if req.ProfileName == "" {
		respond.Error(w, http.StatusBadRequest, "Profile name is required")
		return
	}
	if req.HouseholdName == "" {
		respond.Error(w, http.StatusBadRequest, "Household name is required")
		return
	}

	existing, err := h.profiles.GetByUserID(user.ID)
	if err != nil {
		h.logger.Error("onboarding lookup", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing != nil {
		respond.Error(w, http.StatusConflict, "Already onboarded")
		return
	}

	profile, household, err := h.households.OnboardUser(user.ID, req.ProfileName, req.HouseholdName)
	if err != nil {
		h.logger.Error("onboard user", "user_id", user.ID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to complete onboarding")
		return
	}

	h.logger.Info("user onboarded", "user_id", user.ID, "household_id", household.ID)
	respond.JSON(w, http.StatusCreated, onboardingResponse{
		Profile:   toProfileDTO(*profile),
		Household: toHouseholdDTO(*household),
	})
}
