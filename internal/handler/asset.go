package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

// AssetHandler covers misc assets and liabilities. These are user-scoped:
// only the creating user may mutate one, while household members with an
// owner profile in their roster may read it. That split shows in the status
// codes: an unreadable asset is 404, a readable-but-not-yours mutation is 403.
type AssetHandler struct {
	assets *store.AssetStore
}

func NewAssetHandler(as *store.AssetStore) *AssetHandler {
	return &AssetHandler{assets: as}
}

type assetRequest struct {
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Value           decimal.Decimal `json:"value"`
	OwnerProfileIDs []string        `json:"ownerProfileIds"`
}

func (h *AssetHandler) loadAsset(w http.ResponseWriter, c *authz.Context, id string, action authz.Action) *model.MiscAsset {
	asset, err := h.assets.GetByID(id)
	if err != nil {
		log.Printf("get misc asset: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if asset == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return nil
	}
	owners, err := h.assets.ListOwners(id)
	if err != nil {
		log.Printf("list misc asset owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}

	target := authz.UserTarget(asset.UserID, profileIDs(owners))
	if authz.Authorize(c, target, authz.ActionRead) == authz.Forbidden {
		log.Printf("misc asset %s not readable by user %s", id, c.User.ID)
		respond.Error(w, http.StatusNotFound, "Not found")
		return nil
	}
	if action == authz.ActionWrite && authz.Authorize(c, target, authz.ActionWrite) == authz.Forbidden {
		respond.Error(w, http.StatusForbidden, "Forbidden")
		return nil
	}
	return asset
}

func (h *AssetHandler) assetDTO(a model.MiscAsset) (assetDTO, error) {
	owners, err := h.assets.ListOwners(a.ID)
	if err != nil {
		return assetDTO{}, err
	}
	return toAssetDTO(a, owners), nil
}

// List returns every asset the caller can see: assets reachable through the
// active household plus the caller's own, wherever their owners sit.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	household, err := h.assets.ListForHousehold(c.ActiveHousehold.ID)
	if err != nil {
		log.Printf("list household assets: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	own, err := h.assets.ListForUser(c.User.ID)
	if err != nil {
		log.Printf("list user assets: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	seen := make(map[string]bool, len(household))
	merged := household
	for _, a := range household {
		seen[a.ID] = true
	}
	for _, a := range own {
		if !seen[a.ID] {
			merged = append(merged, a)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Name != merged[j].Name {
			return merged[i].Name < merged[j].Name
		}
		return merged[i].ID < merged[j].ID
	})

	out := make([]assetDTO, 0, len(merged))
	for _, a := range merged {
		dto, err := h.assetDTO(a)
		if err != nil {
			log.Printf("load misc asset %s: %v", a.ID, err)
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		out = append(out, dto)
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Asset name is required")
		return
	}
	if !model.ValidAssetType(req.Type) {
		respond.Error(w, http.StatusBadRequest, "Invalid asset type")
		return
	}
	owners := req.OwnerProfileIDs
	if len(owners) == 0 {
		owners = []string{c.Profile.ID}
	} else if msg := validateOwnerSet(c, owners); msg != "" {
		respond.Error(w, http.StatusBadRequest, msg)
		return
	}

	asset, err := h.assets.Create(c.User.ID, req.Name, model.AssetType(req.Type), req.Value, owners)
	if err != nil {
		log.Printf("create misc asset: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to create asset")
		return
	}
	dto, err := h.assetDTO(*asset)
	if err != nil {
		log.Printf("load misc asset %s: %v", asset.ID, err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusCreated, dto)
}

func (h *AssetHandler) Update(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAsset(w, c, id, authz.ActionWrite) == nil {
		return
	}

	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Asset name is required")
		return
	}
	if !model.ValidAssetType(req.Type) {
		respond.Error(w, http.StatusBadRequest, "Invalid asset type")
		return
	}

	asset, err := h.assets.Update(id, req.Name, model.AssetType(req.Type), req.Value)
	if err != nil {
		log.Printf("update misc asset: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to update asset")
		return
	}
	dto, err := h.assetDTO(*asset)
	if err != nil {
		log.Printf("load misc asset %s: %v", asset.ID, err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, dto)
}

func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAsset(w, c, id, authz.ActionWrite) == nil {
		return
	}

	if err := h.assets.Delete(id); err != nil {
		log.Printf("delete misc asset: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to delete asset")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *AssetHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAsset(w, c, id, authz.ActionRead) == nil {
		return
	}

	owners, err := h.assets.ListOwners(id)
	if err != nil {
		log.Printf("list misc asset owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toProfileDTOs(owners))
}

func (h *AssetHandler) ReplaceOwners(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAsset(w, c, id, authz.ActionWrite) == nil {
		return
	}

	var req ownersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := validateOwnerSet(c, req.OwnerProfileIDs); msg != "" {
		respond.Error(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.assets.ReplaceOwners(id, req.OwnerProfileIDs); err != nil {
		log.Printf("replace misc asset owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to replace owners")
		return
	}
	owners, err := h.assets.ListOwners(id)
	if err != nil {
		log.Printf("list misc asset owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toProfileDTOs(owners))
}
