package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

type StockHandler struct {
	stocks *store.StockStore
}

func NewStockHandler(ss *store.StockStore) *StockHandler {
	return &StockHandler{stocks: ss}
}

type stockAccountRequest struct {
	Name            string   `json:"name"`
	Broker          string   `json:"broker"`
	OwnerProfileIDs []string `json:"ownerProfileIds"`
}

type stockHoldingRequest struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostBasis decimal.Decimal `json:"avgCostBasis"`
}

type ownersRequest struct {
	OwnerProfileIDs []string `json:"ownerProfileIds"`
}

// loadAccount fetches an account and authorizes the caller against its owner
// set, writing the error response itself when the request is already
// answered. A reachable-but-foreign account reads as 404, same as a missing
// one, so responses never confirm existence; the log line keeps the
// difference.
func (h *StockHandler) loadAccount(w http.ResponseWriter, c *authz.Context, id string, action authz.Action) *model.StockAccount {
	account, err := h.stocks.GetAccount(id)
	if err != nil {
		log.Printf("get stock account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if account == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return nil
	}
	owners, err := h.stocks.ListOwners(id)
	if err != nil {
		log.Printf("list stock account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if authz.Authorize(c, authz.HouseholdTarget(profileIDs(owners)), action) == authz.Forbidden {
		log.Printf("stock account %s not reachable from household %s", id, c.ActiveHousehold.ID)
		respond.Error(w, http.StatusNotFound, "Not found")
		return nil
	}
	return account
}

func (h *StockHandler) accountDTO(a model.StockAccount) (stockAccountDTO, error) {
	owners, err := h.stocks.ListOwners(a.ID)
	if err != nil {
		return stockAccountDTO{}, err
	}
	holdings, err := h.stocks.ListHoldings(a.ID)
	if err != nil {
		return stockAccountDTO{}, err
	}
	return stockAccountDTO{
		ID:        a.ID,
		Name:      a.Name,
		Broker:    a.Broker,
		Owners:    toProfileDTOs(owners),
		Holdings:  toStockHoldingDTOs(holdings),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}, nil
}

func (h *StockHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	accounts, err := h.stocks.ListAccountsForHousehold(c.ActiveHousehold.ID)
	if err != nil {
		log.Printf("list stock accounts: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := make([]stockAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dto, err := h.accountDTO(a)
		if err != nil {
			log.Printf("load stock account %s: %v", a.ID, err)
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		out = append(out, dto)
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *StockHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	var req stockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Account name is required")
		return
	}
	owners := req.OwnerProfileIDs
	if len(owners) == 0 {
		owners = []string{c.Profile.ID}
	} else if msg := validateOwnerSet(c, owners); msg != "" {
		respond.Error(w, http.StatusBadRequest, msg)
		return
	}

	account, err := h.stocks.CreateAccount(req.Name, req.Broker, owners)
	if err != nil {
		log.Printf("create stock account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	dto, err := h.accountDTO(*account)
	if err != nil {
		log.Printf("load stock account %s: %v", account.ID, err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusCreated, dto)
}

func (h *StockHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionWrite) == nil {
		return
	}

	var req stockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Account name is required")
		return
	}

	account, err := h.stocks.UpdateAccount(id, req.Name, req.Broker)
	if err != nil {
		log.Printf("update stock account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to update account")
		return
	}
	dto, err := h.accountDTO(*account)
	if err != nil {
		log.Printf("load stock account %s: %v", account.ID, err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, dto)
}

func (h *StockHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionWrite) == nil {
		return
	}

	if err := h.stocks.DeleteAccount(id); err != nil {
		log.Printf("delete stock account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *StockHandler) CreateHolding(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, accountID, authz.ActionWrite) == nil {
		return
	}

	var req stockHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		respond.Error(w, http.StatusBadRequest, "Symbol is required")
		return
	}
	if !req.Quantity.IsPositive() {
		respond.Error(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}
	if req.AvgCostBasis.IsNegative() {
		respond.Error(w, http.StatusBadRequest, "Cost basis cannot be negative")
		return
	}

	holding, err := h.stocks.CreateHolding(accountID, req.Symbol, req.Name, req.Quantity, req.AvgCostBasis)
	if err != nil {
		log.Printf("create stock holding: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to create holding")
		return
	}
	respond.JSON(w, http.StatusCreated, toStockHoldingDTO(*holding))
}

func (h *StockHandler) UpdateHolding(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	holding, err := h.stocks.GetHolding(id)
	if err != nil {
		log.Printf("get stock holding: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if holding == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if h.loadAccount(w, c, holding.AccountID, authz.ActionWrite) == nil {
		return
	}

	var req stockHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		respond.Error(w, http.StatusBadRequest, "Symbol is required")
		return
	}
	if !req.Quantity.IsPositive() {
		respond.Error(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}
	if req.AvgCostBasis.IsNegative() {
		respond.Error(w, http.StatusBadRequest, "Cost basis cannot be negative")
		return
	}

	updated, err := h.stocks.UpdateHolding(id, req.Symbol, req.Name, req.Quantity, req.AvgCostBasis)
	if err != nil {
		log.Printf("update stock holding: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to update holding")
		return
	}
	respond.JSON(w, http.StatusOK, toStockHoldingDTO(*updated))
}

func (h *StockHandler) DeleteHolding(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	holding, err := h.stocks.GetHolding(id)
	if err != nil {
		log.Printf("get stock holding: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if holding == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if h.loadAccount(w, c, holding.AccountID, authz.ActionWrite) == nil {
		return
	}

	if err := h.stocks.DeleteHolding(id); err != nil {
		log.Printf("delete stock holding: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to delete holding")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *StockHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionRead) == nil {
		return
	}

	owners, err := h.stocks.ListOwners(id)
	if err != nil {
		log.Printf("list stock account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toProfileDTOs(owners))
}

// ReplaceOwners swaps the whole owner set in one transaction. The incoming
// set is validated against the active household before anything is written;
// a failure mid-replace rolls back, so a partial set is never observable.
func (h *StockHandler) ReplaceOwners(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionWrite) == nil {
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

	if err := h.stocks.ReplaceOwners(id, req.OwnerProfileIDs); err != nil {
		log.Printf("replace stock account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to replace owners")
		return
	}
	owners, err := h.stocks.ListOwners(id)
	if err != nil {
		log.Printf("list stock account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toProfileDTOs(owners))
}
