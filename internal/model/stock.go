package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockAccount is a brokerage account. Visibility is household-scoped: the
// account is reachable by anyone whose active household contains at least one
// of the account's owner profiles.
type StockAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Broker    string    `json:"broker"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockHolding is a position within a stock account. Quantity and cost basis
// are decimals; market value comes from the price oracle at read time and is
// never persisted here.
type StockHolding struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"-"`
	AvgCostBasis decimal.Decimal `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
