// Package quote wraps the external price provider with a time-boxed cache so
// valuation requests do not hammer the upstream API.
package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one priced symbol. FromCache reports whether the price was served
// from the freshness window rather than fetched for this call.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"-"`
	FetchedAt time.Time       `json:"fetched_at"`
	FromCache bool            `json:"from_cache"`
}

// Security is one hit from the provider's symbol search.
type Security struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// Provider is the upstream price oracle. Implementations must be safe for
// concurrent use.
type Provider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	Search(ctx context.Context, query string) ([]Security, error)
}

// Result is a quote or the error that prevented one. Batch lookups never fail
// wholesale; each symbol carries its own outcome, and callers value an error
// result at zero rather than dropping the holding.
type Result struct {
	Quote Quote
	Err   error
}
