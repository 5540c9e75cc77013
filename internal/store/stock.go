package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/model"
)

type StockStore struct {
	db *sql.DB
}

func NewStockStore(db *sql.DB) *StockStore {
	return &StockStore{db: db}
}

func scanStockAccount(scanner interface{ Scan(...any) error }) (*model.StockAccount, error) {
	var a model.StockAccount
	err := scanner.Scan(&a.ID, &a.Name, &a.Broker, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanStockHolding(scanner interface{ Scan(...any) error }) (*model.StockHolding, error) {
	var h model.StockHolding
	err := scanner.Scan(&h.ID, &h.AccountID, &h.Symbol, &h.Name, &h.Quantity, &h.AvgCostBasis, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const stockAccountCols = `id, name, broker, created_at, updated_at`
const stockHoldingCols = `id, account_id, symbol, name, quantity, avg_cost_basis, created_at, updated_at`

// CreateAccount inserts an account and its owner set in one transaction, so
// an account is never visible without owners.
func (s *StockStore) CreateAccount(name, broker string, ownerProfileIDs []string) (*model.StockAccount, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO stock_accounts (id, name, broker) VALUES (?, ?, ?)`,
		id, name, broker,
	); err != nil {
		return nil, fmt.Errorf("insert stock account: %w", err)
	}
	for _, profileID := range ownerProfileIDs {
		if _, err := tx.Exec(
			`INSERT INTO stock_account_owners (account_id, profile_id) VALUES (?, ?)`,
			id, profileID,
		); err != nil {
			return nil, fmt.Errorf("insert stock account owner: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stock account: %w", err)
	}
	return s.GetAccount(id)
}

func (s *StockStore) GetAccount(id string) (*model.StockAccount, error) {
	row := s.db.QueryRow(`SELECT `+stockAccountCols+` FROM stock_accounts WHERE id = ?`, id)
	a, err := scanStockAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock account: %w", err)
	}
	return a, nil
}

func (s *StockStore) UpdateAccount(id, name, broker string) (*model.StockAccount, error) {
	_, err := s.db.Exec(
		`UPDATE stock_accounts SET name = ?, broker = ?, updated_at = datetime('now') WHERE id = ?`,
		name, broker, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update stock account: %w", err)
	}
	return s.GetAccount(id)
}

func (s *StockStore) DeleteAccount(id string) error {
	_, err := s.db.Exec(`DELETE FROM stock_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete stock account: %w", err)
	}
	return nil
}

// ListAccountsForHousehold returns accounts reachable from a household: any
// account with at least one owner profile among the household's members.
func (s *StockStore) ListAccountsForHousehold(householdID string) ([]model.StockAccount, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT a.id, a.name, a.broker, a.created_at, a.updated_at
		 FROM stock_accounts a
		 JOIN stock_account_owners o ON o.account_id = a.id
		 JOIN household_members hm ON hm.profile_id = o.profile_id
		 WHERE hm.household_id = ?
		 ORDER BY a.name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock accounts for household: %w", err)
	}
	defer rows.Close()
	return collectStockAccounts(rows)
}

// ListAccountsForProfile returns accounts a single profile owns, for users
// whose profile belongs to no household.
func (s *StockStore) ListAccountsForProfile(profileID string) ([]model.StockAccount, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.name, a.broker, a.created_at, a.updated_at
		 FROM stock_accounts a
		 JOIN stock_account_owners o ON o.account_id = a.id
		 WHERE o.profile_id = ?
		 ORDER BY a.name ASC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock accounts for profile: %w", err)
	}
	defer rows.Close()
	return collectStockAccounts(rows)
}

func collectStockAccounts(rows *sql.Rows) ([]model.StockAccount, error) {
	var accounts []model.StockAccount
	for rows.Next() {
		a, err := scanStockAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *StockStore) ListOwners(accountID string) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.name, p.avatar_emoji, p.color, p.user_id, p.created_at, p.updated_at
		 FROM profiles p
		 JOIN stock_account_owners o ON o.profile_id = p.id
		 WHERE o.account_id = ?
		 ORDER BY p.name ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock account owners: %w", err)
	}
	defer rows.Close()

	var owners []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, *p)
	}
	return owners, rows.Err()
}

// ReplaceOwners swaps the full owner set in one transaction. A crash can
// never leave the account with zero owners, because the delete and inserts
// commit together.
func (s *StockStore) ReplaceOwners(accountID string, profileIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM stock_account_owners WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear stock account owners: %w", err)
	}
	for _, profileID := range profileIDs {
		if _, err := tx.Exec(
			`INSERT INTO stock_account_owners (account_id, profile_id) VALUES (?, ?)`,
			accountID, profileID,
		); err != nil {
			return fmt.Errorf("insert stock account owner: %w", err)
		}
	}
	return tx.Commit()
}

func (s *StockStore) CreateHolding(accountID, symbol, name string, quantity, avgCostBasis decimal.Decimal) (*model.StockHolding, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO stock_holdings (id, account_id, symbol, name, quantity, avg_cost_basis) VALUES (?, ?, ?, ?, ?, ?)`,
		id, accountID, symbol, name, quantity, avgCostBasis,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stock holding: %w", err)
	}
	return s.GetHolding(id)
}

func (s *StockStore) GetHolding(id string) (*model.StockHolding, error) {
	row := s.db.QueryRow(`SELECT `+stockHoldingCols+` FROM stock_holdings WHERE id = ?`, id)
	h, err := scanStockHolding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock holding: %w", err)
	}
	return h, nil
}

func (s *StockStore) UpdateHolding(id, symbol, name string, quantity, avgCostBasis decimal.Decimal) (*model.StockHolding, error) {
	_, err := s.db.Exec(
		`UPDATE stock_holdings SET symbol = ?, name = ?, quantity = ?, avg_cost_basis = ?, updated_at = datetime('now') WHERE id = ?`,
		symbol, name, quantity, avgCostBasis, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update stock holding: %w", err)
	}
	return s.GetHolding(id)
}

func (s *StockStore) DeleteHolding(id string) error {
	_, err := s.db.Exec(`DELETE FROM stock_holdings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete stock holding: %w", err)
	}
	return nil
}

func (s *StockStore) ListHoldings(accountID string) ([]model.StockHolding, error) {
	rows, err := s.db.Query(
		`SELECT `+stockHoldingCols+` FROM stock_holdings WHERE account_id = ? ORDER BY symbol ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock holdings: %w", err)
	}
	defer rows.Close()

	var holdings []model.StockHolding
	for rows.Next() {
		h, err := scanStockHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock holding: %w", err)
		}
		holdings = append(holdings, *h)
	}
	return holdings, rows.Err()
}

// DistinctSymbols returns every symbol held anywhere, for warming the price
// cache in one batch.
func (s *StockStore) DistinctSymbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM stock_holdings ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list distinct symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
