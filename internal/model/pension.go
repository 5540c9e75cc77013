package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PensionAccount is a retirement account with a self-reported current value;
// no price lookup is involved. Household-scoped like stock accounts.
type PensionAccount struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Provider     string          `json:"provider"`
	CurrentValue decimal.Decimal `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PensionDeposit records a contribution into a pension account.
type PensionDeposit struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"-"`
	DepositedOn time.Time       `json:"deposited_on"`
	Note        string          `json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
}
