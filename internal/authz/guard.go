package authz

// Scope selects the authorization strategy for a record type. Stock and
// pension accounts are household-scoped: reachable through any owner profile
// in the caller's active household. Misc assets are user-scoped: the creating
// user holds mutate rights, while the owner-profile set still grants
// household members read access for aggregation.
type Scope int

const (
	ScopeOwnerUser Scope = iota
	ScopeHouseholdOwners
)

type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

// Decision is the outcome of an authorization check. Absence of a record is
// not a Decision; call sites keep the store-level nil distinct so logs can
// tell "missing" from "reachable but not yours", even where both end up 404.
type Decision int

const (
	Forbidden Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "forbidden"
}

// Target is a record under authorization: its scope tag plus the fields the
// strategies read. Handlers build one from the record and its owner set.
type Target struct {
	Scope Scope
	// RecordUserID is the creating user, read by ScopeOwnerUser.
	RecordUserID string
	// OwnerProfileIDs is the record's owner set, read by ScopeHouseholdOwners
	// and by ScopeOwnerUser reads.
	OwnerProfileIDs []string
}

// HouseholdTarget tags a stock or pension account for authorization.
func HouseholdTarget(ownerProfileIDs []string) Target {
	return Target{Scope: ScopeHouseholdOwners, OwnerProfileIDs: ownerProfileIDs}
}

// UserTarget tags a misc asset for authorization.
func UserTarget(recordUserID string, ownerProfileIDs []string) Target {
	return Target{Scope: ScopeOwnerUser, RecordUserID: recordUserID, OwnerProfileIDs: ownerProfileIDs}
}

// Authorize decides whether the caller may perform the action on the target.
//
// ScopeHouseholdOwners: allowed iff the owner set intersects the active
// household's member profiles, for reads and writes alike. A record whose
// owners have all left the household is unreachable until a future re-grant.
//
// ScopeOwnerUser: the creating user may do anything; other members of the
// active household may read when an owner profile is in the household.
func Authorize(c *Context, t Target, a Action) Decision {
	switch t.Scope {
	case ScopeHouseholdOwners:
		return intersects(c, t.OwnerProfileIDs)
	case ScopeOwnerUser:
		if t.RecordUserID == c.User.ID {
			return Allowed
		}
		if a == ActionRead {
			return intersects(c, t.OwnerProfileIDs)
		}
	}
	return Forbidden
}

func intersects(c *Context, ownerProfileIDs []string) Decision {
	for _, id := range ownerProfileIDs {
		if c.IsMemberProfile(id) {
			return Allowed
		}
	}
	return Forbidden
}
