package authz

import (
	"context"

	"github.com/dukerupert/mathom/internal/model"
)

// Context is the fully resolved caller for one request: the user, their
// profile, every household they belong to, and the active household with its
// member roster. It is built per request and never cached server-side.
type Context struct {
	User        model.User
	Profile     model.Profile
	Memberships []model.Membership

	ActiveHousehold model.Household
	// Role is the caller's role in the active household.
	Role string
	// HouseholdProfiles is the full roster of the active household, in
	// membership order.
	HouseholdProfiles []model.Profile
}

// RoleIn returns the caller's role in the given household, or "" when the
// caller is not a member of it.
func (c *Context) RoleIn(householdID string) string {
	for _, m := range c.Memberships {
		if m.Household.ID == householdID {
			return m.Role
		}
	}
	return ""
}

// IsMemberProfile reports whether a profile belongs to the active household.
func (c *Context) IsMemberProfile(profileID string) bool {
	for _, p := range c.HouseholdProfiles {
		if p.ID == profileID {
			return true
		}
	}
	return false
}

// MemberProfileIDs returns the active household's profile IDs in roster order.
func (c *Context) MemberProfileIDs() []string {
	ids := make([]string, 0, len(c.HouseholdProfiles))
	for _, p := range c.HouseholdProfiles {
		ids = append(ids, p.ID)
	}
	return ids
}

type userKey struct{}
type ctxKey struct{}

// WithUser attaches the authenticated user, before household resolution.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey{}).(*model.User)
	return u, ok
}

// WithContext attaches the resolved caller context.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok
}
