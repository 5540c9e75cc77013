package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/dukerupert/mathom/internal/quote"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
	"github.com/dukerupert/mathom/internal/valuation"
)

// PriceSource yields current prices for a batch of symbols. Satisfied by
// quote.Cache; per-symbol failures come back as error Results and degrade to
// zero-priced holdings instead of failing the request.
type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) map[string]quote.Result
}

// DashboardHandler aggregates the active household's full financial picture
// through the valuation engine.
type DashboardHandler struct {
	stocks   *store.StockStore
	pensions *store.PensionStore
	assets   *store.AssetStore
	prices   PriceSource
}

func NewDashboardHandler(ss *store.StockStore, ps *store.PensionStore, as *store.AssetStore, prices PriceSource) *DashboardHandler {
	return &DashboardHandler{stocks: ss, pensions: ps, assets: as, prices: prices}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	householdID := c.ActiveHousehold.ID

	stockAccounts, err := h.stocks.ListAccountsForHousehold(householdID)
	if err != nil {
		log.Printf("dashboard: list stock accounts: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	var symbols []string
	stockRecords := make([]valuation.StockAccountRecords, 0, len(stockAccounts))
	for _, a := range stockAccounts {
		holdings, err := h.stocks.ListHoldings(a.ID)
		if err != nil {
			log.Printf("dashboard: list holdings for %s: %v", a.ID, err)
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		for _, holding := range holdings {
			symbols = append(symbols, holding.Symbol)
		}
		stockRecords = append(stockRecords, valuation.StockAccountRecords{Account: a, Holdings: holdings})
	}

	pensionAccounts, err := h.pensions.ListAccountsForHousehold(householdID)
	if err != nil {
		log.Printf("dashboard: list pension accounts: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	pensionRecords := make([]valuation.PensionAccountRecords, 0, len(pensionAccounts))
	for _, a := range pensionAccounts {
		deposits, err := h.pensions.ListDeposits(a.ID)
		if err != nil {
			log.Printf("dashboard: list deposits for %s: %v", a.ID, err)
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		pensionRecords = append(pensionRecords, valuation.PensionAccountRecords{Account: a, Deposits: deposits})
	}

	assets, err := h.assets.ListForHousehold(householdID)
	if err != nil {
		log.Printf("dashboard: list assets: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	prices := h.prices.GetPrices(r.Context(), symbols)
	summary := valuation.ComputeNetWorth(stockRecords, pensionRecords, assets, prices)
	respond.JSON(w, http.StatusOK, toDashboardDTO(summary))
}
