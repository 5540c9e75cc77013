package authz

import "github.com/dukerupert/mathom/internal/model"

// Capabilities is what a household role may do to the household itself and
// its members. Financial-record access is decided by Authorize, not here.
type Capabilities struct {
	CanManageMembers   bool
	CanEditHousehold   bool
	CanDeleteHousehold bool
}

// CapabilitiesFor maps a role to its capability set. Unknown or empty roles
// get nothing. Deleting a household additionally requires that it not be the
// caller's only household; handlers check that against the membership count,
// and the owner role itself stays immutable regardless of capabilities.
func CapabilitiesFor(role string) Capabilities {
	switch role {
	case model.RoleOwner:
		return Capabilities{
			CanManageMembers:   true,
			CanEditHousehold:   true,
			CanDeleteHousehold: true,
		}
	case model.RoleAdmin:
		return Capabilities{
			CanManageMembers: true,
			CanEditHousehold: true,
		}
	default:
		return Capabilities{}
	}
}
