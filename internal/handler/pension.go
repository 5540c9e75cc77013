package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/respond"
	"github.com/dukerupert/mathom/internal/store"
)

type PensionHandler struct {
	pensions *store.PensionStore
}

func NewPensionHandler(ps *store.PensionStore) *PensionHandler {
	return &PensionHandler{pensions: ps}
}

type pensionAccountRequest struct {
	Name            string          `json:"name"`
	Provider        string          `json:"provider"`
	CurrentValue    decimal.Decimal `json:"currentValue"`
	OwnerProfileIDs []string        `json:"ownerProfileIds"`
}

type pensionDepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	DepositedOn string          `json:"depositedOn"`
	Note        string          `json:"note"`
}

// loadAccount mirrors the stock handler: missing and unreachable accounts
// both answer 404, the log line tells them apart.
func (h *PensionHandler) loadAccount(w http.ResponseWriter, c *authz.Context, id string, action authz.Action) *model.PensionAccount {
	account, err := h.pensions.GetAccount(id)
	if err != nil {
		log.Printf("get pension account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if account == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return nil
	}
	owners, err := h.pensions.ListOwners(id)
	if err != nil {
		log.Printf("list pension account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return nil
	}
	if authz.Authorize(c, authz.HouseholdTarget(profileIDs(owners)), action) == authz.Forbidden {
		log.Printf("pension account %s not reachable from household %s", id, c.ActiveHousehold.ID)
		respond.Error(w, http.StatusNotFound, "Not found")
		return nil
	}
	return account
}

func (h *PensionHandler) accountDTO(a model.PensionAccount) (pensionAccountDTO, error) {
	owners, err := h.pensions.ListOwners(a.ID)
	if err != nil {
		return pensionAccountDTO{}, err
	}
	deposits, err := h.pensions.ListDeposits(a.ID)
	if err != nil {
		return pensionAccountDTO{}, err
	}
	return pensionAccountDTO{
		ID:           a.ID,
		Name:         a.Name,
		Provider:     a.Provider,
		CurrentValue: money(a.CurrentValue),
		Owners:       toProfileDTOs(owners),
		Deposits:     toPensionDepositDTOs(deposits),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}, nil
}

func (h *PensionHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	accounts, err := h.pensions.ListAccountsForHousehold(c.ActiveHousehold.ID)
	if err != nil {
		log.Printf("list pension accounts: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	out := make([]pensionAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dto, err := h.accountDTO(a)
		if err != nil {
			log.Printf("load pension account %s: %v", a.ID, err)
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		out = append(out, dto)
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *PensionHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	c := caller(r)

	var req pensionAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Account name is required")
		return
	}
	if req.CurrentValue.IsNegative() {
		respond.Error(w, http.StatusBadRequest, "Current value cannot be negative")
		return
	}
	owners := req.OwnerProfileIDs
	if len(owners) == 0 {
		owners = []string{c.Profile.ID}
	} else if msg := validateOwnerSet(c, owners); msg != "" {
		respond.Error(w, http.StatusBadRequest, msg)
		return
	}

	account, err := h.pensions.CreateAccount(req.Name, req.Provider, req.CurrentValue, owners)
	if err != nil {
		log.Printf("create pension account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	dto, err := h.accountDTO(*account)
	if err != nil {
		log.Printf("load pension account %s: %v", account.ID, err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusCreated, dto)
}

func (h *PensionHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionWrite) == nil {
		return
	}

	var req pensionAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "Account name is required")
		return
	}
	if req.CurrentValue.IsNegative() {
		respond.Error(w, http.StatusBadRequest, "Current value cannot be negative")
		return
	}

	account, err := h.pensions.UpdateAccount(id, req.Name, req.Provider, req.CurrentValue)
	if err != nil {
		log.Printf("update pension account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to update account")
		return
	}
	dto, err := h.accountDTO(*account)
	if err != nil {
		log.Printf("load pension account %s: %v", account.ID, err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, dto)
}

func (h *PensionHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionWrite) == nil {
		return
	}

	if err := h.pensions.DeleteAccount(id); err != nil {
		log.Printf("delete pension account: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *PensionHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, accountID, authz.ActionWrite) == nil {
		return
	}

	var req pensionDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !req.Amount.IsPositive() {
		respond.Error(w, http.StatusBadRequest, "Amount must be positive")
		return
	}
	depositedOn := time.Now()
	if req.DepositedOn != "" {
		depositedOn, err = time.Parse("2006-01-02", req.DepositedOn)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid date format")
			return
		}
	}

	deposit, err := h.pensions.CreateDeposit(accountID, req.Amount, depositedOn, req.Note)
	if err != nil {
		log.Printf("create pension deposit: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to create deposit")
		return
	}
	respond.JSON(w, http.StatusCreated, toPensionDepositDTO(*deposit))
}

func (h *PensionHandler) DeleteDeposit(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	deposit, err := h.pensions.GetDeposit(id)
	if err != nil {
		log.Printf("get pension deposit: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if deposit == nil {
		respond.Error(w, http.StatusNotFound, "Not found")
		return
	}
	if h.loadAccount(w, c, deposit.AccountID, authz.ActionWrite) == nil {
		return
	}

	if err := h.pensions.DeleteDeposit(id); err != nil {
		log.Printf("delete pension deposit: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to delete deposit")
		return
	}
	respond.JSON(w, http.StatusOK, nil)
}

func (h *PensionHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	id, err := parseIDParam(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid ID format")
		return
	}
	if h.loadAccount(w, c, id, authz.ActionRead) == nil {
		return
	}

	owners, err := h.pensions.ListOwners(id)
	if err != nil {
		log.Printf("list pension account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toProfileDTOs(owners))
}

func (h *PensionHandler) ReplaceOwners(w http.ResponseWriter, r *http.Request) {
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

	if err := h.pensions.ReplaceOwners(id, req.OwnerProfileIDs); err != nil {
		log.Printf("replace pension account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to replace owners")
		return
	}
	owners, err := h.pensions.ListOwners(id)
	if err != nil {
		log.Printf("list pension account owners: %v", err)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respond.JSON(w, http.StatusOK, toProfileDTOs(owners))
}
