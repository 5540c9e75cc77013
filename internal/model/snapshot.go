package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NetWorthSnapshot is an append-only, point-in-time net-worth figure. Exactly
// one of HouseholdID or UserID is set: household snapshots cover the normal
// case, user snapshots cover users with no household membership.
type NetWorthSnapshot struct {
	ID          string          `json:"id"`
	HouseholdID *string         `json:"household_id,omitempty"`
	UserID      *string         `json:"user_id,omitempty"`
	NetWorth    decimal.Decimal `json:"-"`
	TakenAt     time.Time       `json:"taken_at"`
}
