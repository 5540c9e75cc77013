package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/dukerupert/mathom/internal/quote"
	"github.com/dukerupert/mathom/internal/respond"
)

// SecuritySearcher is the symbol-search side of the price oracle. Satisfied
// by quote.Cache, which keeps results warm for a few minutes.
type SecuritySearcher interface {
	Search(ctx context.Context, query string) ([]quote.Security, error)
}

type SecurityHandler struct {
	quotes SecuritySearcher
}

func NewSecurityHandler(qs SecuritySearcher) *SecurityHandler {
	return &SecurityHandler{quotes: qs}
}

func (h *SecurityHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respond.Error(w, http.StatusBadRequest, "Query is required")
		return
	}

	hits, err := h.quotes.Search(r.Context(), query)
	if err != nil {
		log.Printf("security search %q: %v", query, err)
		respond.Error(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if hits == nil {
		hits = []quote.Security{}
	}
	respond.JSON(w, http.StatusOK, hits)
}
