// Package snapshot records net worth history. A run values every household
// and every household-less user against one shared price batch and appends
// one row each; rows are never updated.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/quote"
	"github.com/dukerupert/mathom/internal/store"
	"github.com/dukerupert/mathom/internal/valuation"
)

// defaultRunTimeout bounds a whole run. A run that cannot finish in this
// window is abandoned and retried on the next cycle rather than left hanging.
const defaultRunTimeout = 10 * time.Minute

// PriceSource resolves a symbol batch to per-symbol results. Satisfied by
// quote.Cache.
type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) map[string]quote.Result
}

// Runner computes and persists net worth snapshots. It reads records
// directly through the stores, without per-request authorization: every
// household is valued over its full record set.
type Runner struct {
	households *store.HouseholdStore
	users      *store.UserStore
	profiles   *store.ProfileStore
	stocks     *store.StockStore
	pensions   *store.PensionStore
	assets     *store.AssetStore
	snapshots  *store.SnapshotStore
	prices     PriceSource
	logger     *slog.Logger
	timeout    time.Duration
}

func NewRunner(
	households *store.HouseholdStore,
	users *store.UserStore,
	profiles *store.ProfileStore,
	stocks *store.StockStore,
	pensions *store.PensionStore,
	assets *store.AssetStore,
	snapshots *store.SnapshotStore,
	prices PriceSource,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		households: households,
		users:      users,
		profiles:   profiles,
		stocks:     stocks,
		pensions:   pensions,
		assets:     assets,
		snapshots:  snapshots,
		prices:     prices,
		logger:     logger.With("component", "snapshot"),
		timeout:    defaultRunTimeout,
	}
}

// RunAll snapshots every household, then every user without a household
// membership. Prices for all known symbols are fetched once up front and
// shared across the run. One household's failure is logged and skipped; only
// failures that sink the whole run (listing households, listing users) are
// returned.
func (r *Runner) RunAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()

	symbols, err := r.stocks.DistinctSymbols()
	if err != nil {
		return fmt.Errorf("listing symbols: %w", err)
	}
	prices := r.prices.GetPrices(ctx, symbols)

	households, err := r.households.ListAll()
	if err != nil {
		return fmt.Errorf("listing households: %w", err)
	}

	failed := 0
	for _, h := range households {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("snapshot run aborted: %w", err)
		}
		if err := r.snapshotHousehold(h.ID, prices); err != nil {
			failed++
			r.logger.Error("household snapshot failed", "household_id", h.ID, "error", err)
		}
	}

	soloUsers, err := r.users.ListWithoutMemberships()
	if err != nil {
		return fmt.Errorf("listing users without memberships: %w", err)
	}
	for _, u := range soloUsers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("snapshot run aborted: %w", err)
		}
		if err := r.snapshotUser(u.ID, prices); err != nil {
			failed++
			r.logger.Error("user snapshot failed", "user_id", u.ID, "error", err)
		}
	}

	r.logger.Info("snapshot run complete",
		"households", len(households),
		"solo_users", len(soloUsers),
		"failed", failed,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return nil
}

func (r *Runner) snapshotHousehold(householdID string, prices map[string]quote.Result) error {
	stockAccounts, err := r.stocks.ListAccountsForHousehold(householdID)
	if err != nil {
		return fmt.Errorf("stock accounts: %w", err)
	}
	stocks, err := r.collectStockRecords(stockAccounts)
	if err != nil {
		return err
	}

	pensionAccounts, err := r.pensions.ListAccountsForHousehold(householdID)
	if err != nil {
		return fmt.Errorf("pension accounts: %w", err)
	}

	assets, err := r.assets.ListForHousehold(householdID)
	if err != nil {
		return fmt.Errorf("misc assets: %w", err)
	}

	summary := valuation.ComputeNetWorth(stocks, pensionRecords(pensionAccounts), assets, prices)
	if _, err := r.snapshots.InsertForHousehold(householdID, summary.NetWorth); err != nil {
		return err
	}
	return nil
}

func (r *Runner) snapshotUser(userID string, prices map[string]quote.Result) error {
	var stocks []valuation.StockAccountRecords
	var pensions []valuation.PensionAccountRecords

	// A household-less user may still have a profile that owns accounts.
	profile, err := r.profiles.GetByUserID(userID)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if profile != nil {
		stockAccounts, err := r.stocks.ListAccountsForProfile(profile.ID)
		if err != nil {
			return fmt.Errorf("stock accounts: %w", err)
		}
		stocks, err = r.collectStockRecords(stockAccounts)
		if err != nil {
			return err
		}

		pensionAccounts, err := r.pensions.ListAccountsForProfile(profile.ID)
		if err != nil {
			return fmt.Errorf("pension accounts: %w", err)
		}
		pensions = pensionRecords(pensionAccounts)
	}

	assets, err := r.assets.ListForUser(userID)
	if err != nil {
		return fmt.Errorf("misc assets: %w", err)
	}

	summary := valuation.ComputeNetWorth(stocks, pensions, assets, prices)
	if _, err := r.snapshots.InsertForUser(userID, summary.NetWorth); err != nil {
		return err
	}
	return nil
}

func (r *Runner) collectStockRecords(accounts []model.StockAccount) ([]valuation.StockAccountRecords, error) {
	records := make([]valuation.StockAccountRecords, 0, len(accounts))
	for _, a := range accounts {
		holdings, err := r.stocks.ListHoldings(a.ID)
		if err != nil {
			return nil, fmt.Errorf("holdings for account %s: %w", a.ID, err)
		}
		records = append(records, valuation.StockAccountRecords{Account: a, Holdings: holdings})
	}
	return records, nil
}

// pensionRecords wraps accounts without their deposit history: only the
// current value feeds the total.
func pensionRecords(accounts []model.PensionAccount) []valuation.PensionAccountRecords {
	records := make([]valuation.PensionAccountRecords, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, valuation.PensionAccountRecords{Account: a})
	}
	return records
}
