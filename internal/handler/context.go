package handler

import (
	"net/http"

	"github.com/dukerupert/mathom/internal/respond"
)

// ContextHandler serializes the resolved caller context. The heavy lifting
// happens in the middleware chain; by the time this runs the context is
// complete and self-consistent.
type ContextHandler struct{}

func NewContextHandler() *ContextHandler {
	return &ContextHandler{}
}

func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, toContextDTO(caller(r)))
}
