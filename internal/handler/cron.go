package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mathom/internal/quote"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

// SnapshotRunner is the snapshot sweep. Satisfied by snapshot.Runner.
type SnapshotRunner interface {
	RunAll(ctx context.Context) error
}

// PriceRefresher force-refetches quotes regardless of freshness. Satisfied
// by quote.Cache.
type PriceRefresher interface {
	Refresh(ctx context.Context, symbols []string) map[string]quote.Result
}

// CronHandler backs the /cron endpoints. They carry no caller context; the
// snapshot run iterates households as a system principal, and the price
// refresh warms the cache for every symbol any holding references.
type CronHandler struct {
	runner SnapshotRunner
	stocks *store.StockStore
	prices PriceRefresher
	logger *slog.Logger
}

func NewCronHandler(runner SnapshotRunner, ss *store.StockStore, prices PriceRefresher, logger *slog.Logger) *CronHandler {
	return &CronHandler{runner: runner, stocks: ss, prices: prices, logger: logger}
}

func (h *CronHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.RunAll(r.Context()); err != nil {
		h.logger.Error("snapshot run", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Snapshot run failed")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *CronHandler) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.stocks.DistinctSymbols()
	if err != nil {
		h.logger.Error("distinct symbols", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	results := h.prices.Refresh(r.Context(), symbols)
	refreshed, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		} else {
			refreshed++
		}
	}
	h.logger.Info("price refresh", "refreshed", refreshed, "failed", failed)
	respond.JSON(w, http.StatusOK, map[string]int{"refreshed": refreshed, "failed": failed})
}
