package directory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/store"
)

// ErrNeedsOnboarding marks a known user without a usable persona: either no
// profile at all, or a profile with zero household memberships. Distinct from
// unauthenticated; the caller proved who they are but has nowhere to land.
var ErrNeedsOnboarding = errors.New("needs onboarding")

// Service resolves a user to their profile, memberships, and the active
// household for one request.
type Service struct {
	profiles   *store.ProfileStore
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewService(profiles *store.ProfileStore, households *store.HouseholdStore, logger *slog.Logger) *Service {
	return &Service{
		profiles:   profiles,
		households: households,
		logger:     logger.With("component", "directory"),
	}
}

// Resolve builds the caller context. The active household is the requested
// one when the caller is a member of it; otherwise the earliest membership.
// A requested household the caller does not belong to falls back silently
// rather than erroring, so stale query parameters never lock a client out.
func (s *Service) Resolve(user *model.User, requestedHouseholdID string) (*authz.Context, error) {
	profile, err := s.profiles.GetByUserID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrNeedsOnboarding
	}

	memberships, err := s.households.ListMembershipsForProfile(profile.ID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	if len(memberships) == 0 {
		// Households are created together with profiles, so this state is
		// inconsistent; treat it as not-ready rather than half-resolved.
		s.logger.Warn("profile has no memberships", "profile_id", profile.ID)
		return nil, ErrNeedsOnboarding
	}

	active := memberships[0]
	if requestedHouseholdID != "" {
		for _, m := range memberships {
			if m.Household.ID == requestedHouseholdID {
				active = m
				break
			}
		}
	}

	roster, err := s.profiles.ListByHousehold(active.Household.ID)
	if err != nil {
		return nil, fmt.Errorf("load household roster: %w", err)
	}

	return &authz.Context{
		User:              *user,
		Profile:           *profile,
		Memberships:       memberships,
		ActiveHousehold:   active.Household,
		Role:              active.Role,
		HouseholdProfiles: roster,
	}, nil
}
