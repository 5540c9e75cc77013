package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType classifies a misc asset. Liability types are stored as negative
// values; that sign is the only marker distinguishing assets from liabilities.
type AssetType string

const (
	AssetBankDeposit  AssetType = "bank_deposit"
	AssetChildSavings AssetType = "child_savings"
	AssetLoan         AssetType = "loan"
	AssetMortgage     AssetType = "mortgage"
	AssetOther        AssetType = "other"
)

// ValidAssetType reports whether s is a known asset type.
func ValidAssetType(s string) bool {
	switch AssetType(s) {
	case AssetBankDeposit, AssetChildSavings, AssetLoan, AssetMortgage, AssetOther:
		return true
	}
	return false
}

// IsLiability reports whether the type carries the negative-value convention.
func (t AssetType) IsLiability() bool {
	return t == AssetLoan || t == AssetMortgage
}

// NormalizeValue applies the sign convention for the given type: liability
// values are stored negative, asset values keep the sign they were given.
// The convention is applied on create and on every value update.
func (t AssetType) NormalizeValue(v decimal.Decimal) decimal.Decimal {
	if t.IsLiability() && v.IsPositive() {
		return v.Neg()
	}
	return v
}

// MiscAsset is a free-form asset or liability. Unlike stock and pension
// accounts it is user-scoped: mutate rights belong to the user that created
// it. The owner-profile set still determines which household dashboards
// include it.
type MiscAsset struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Type      AssetType       `json:"type"`
	Value     decimal.Decimal `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
