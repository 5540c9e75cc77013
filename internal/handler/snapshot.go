package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

const (
	defaultSnapshotLimit = 60
	maxSnapshotLimit     = 365
)

// SnapshotHandler lists the active household's net-worth history, newest
// first, for charting.
type SnapshotHandler struct {
	snapshots *store.SnapshotStore
}

func NewSnapshotHandler(ss *store.SnapshotStore) *SnapshotHandler {
	return &SnapshotHandler{snapshots: ss}
}

func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	limit := defaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.Error(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}

	snapshots, err := h.snapshots.ListForHousehold(c.ActiveHousehold.ID, limit)
	if err != nil {
		log.Printf("list snapshots: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toSnapshotDTOs(snapshots))
}
