// Package handler implements the JSON API. Every response, success or
// failure, uses the respond envelope; request bodies are decoded into
// per-endpoint request structs and validated before any store call.
package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
)

// parseIDParam extracts and validates a path parameter holding a record ID.
// Malformed IDs are rejected here so they never reach a query.
func parseIDParam(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	if err := uuid.Validate(id); err != nil {
		return "", err
	}
	return id, nil
}

// caller returns the resolved request context. Handlers registered behind
// RequireContext may assume it is present.
func caller(r *http.Request) *authz.Context {
	c, _ := authz.FromContext(r.Context())
	return c
}

func profileIDs(ps []model.Profile) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

// validateOwnerSet checks a proposed owner set: non-empty, well-formed IDs,
// every profile a member of the caller's active household. Returns the first
// violation, or "" when the set is acceptable.
func validateOwnerSet(c *authz.Context, ids []string) string {
	if len(ids) == 0 {
		return "Owner set cannot be empty"
	}
	for _, id := range ids {
		if err := uuid.Validate(id); err != nil {
			return "Invalid ID format"
		}
		if !c.IsMemberProfile(id) {
			return "Owner profile is not in the active household"
		}
	}
	return ""
}
