package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/model"
)

type PensionStore struct {
	db *sql.DB
}

func NewPensionStore(db *sql.DB) *PensionStore {
	return &PensionStore{db: db}
}

func scanPensionAccount(scanner interface{ Scan(...any) error }) (*model.PensionAccount, error) {
	var a model.PensionAccount
	err := scanner.Scan(&a.ID, &a.Name, &a.Provider, &a.CurrentValue, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanPensionDeposit(scanner interface{ Scan(...any) error }) (*model.PensionDeposit, error) {
	var d model.PensionDeposit
	err := scanner.Scan(&d.ID, &d.AccountID, &d.Amount, &d.DepositedOn, &d.Note, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const pensionAccountCols = `id, name, provider, current_value, created_at, updated_at`
const pensionDepositCols = `id, account_id, amount, deposited_on, note, created_at`

// CreateAccount inserts an account and its owner set in one transaction.
func (s *PensionStore) CreateAccount(name, provider string, currentValue decimal.Decimal, ownerProfileIDs []string) (*model.PensionAccount, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO pension_accounts (id, name, provider, current_value) VALUES (?, ?, ?, ?)`,
		id, name, provider, currentValue,
	); err != nil {
		return nil, fmt.Errorf("insert pension account: %w", err)
	}
	for _, profileID := range ownerProfileIDs {
		if _, err := tx.Exec(
			`INSERT INTO pension_account_owners (account_id, profile_id) VALUES (?, ?)`,
			id, profileID,
		); err != nil {
			return nil, fmt.Errorf("insert pension account owner: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pension account: %w", err)
	}
	return s.GetAccount(id)
}

func (s *PensionStore) GetAccount(id string) (*model.PensionAccount, error) {
	row := s.db.QueryRow(`SELECT `+pensionAccountCols+` FROM pension_accounts WHERE id = ?`, id)
	a, err := scanPensionAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pension account: %w", err)
	}
	return a, nil
}

func (s *PensionStore) UpdateAccount(id, name, provider string, currentValue decimal.Decimal) (*model.PensionAccount, error) {
	_, err := s.db.Exec(
		`UPDATE pension_accounts SET name = ?, provider = ?, current_value = ?, updated_at = datetime('now') WHERE id = ?`,
		name, provider, currentValue, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update pension account: %w", err)
	}
	return s.GetAccount(id)
}

func (s *PensionStore) DeleteAccount(id string) error {
	_, err := s.db.Exec(`DELETE FROM pension_accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pension account: %w", err)
	}
	return nil
}

func (s *PensionStore) ListAccountsForHousehold(householdID string) ([]model.PensionAccount, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT a.id, a.name, a.provider, a.current_value, a.created_at, a.updated_at
		 FROM pension_accounts a
		 JOIN pension_account_owners o ON o.account_id = a.id
		 JOIN household_members hm ON hm.profile_id = o.profile_id
		 WHERE hm.household_id = ?
		 ORDER BY a.name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pension accounts for household: %w", err)
	}
	defer rows.Close()
	return collectPensionAccounts(rows)
}

func (s *PensionStore) ListAccountsForProfile(profileID string) ([]model.PensionAccount, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.name, a.provider, a.current_value, a.created_at, a.updated_at
		 FROM pension_accounts a
		 JOIN pension_account_owners o ON o.account_id = a.id
		 WHERE o.profile_id = ?
		 ORDER BY a.name ASC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pension accounts for profile: %w", err)
	}
	defer rows.Close()
	return collectPensionAccounts(rows)
}

func collectPensionAccounts(rows *sql.Rows) ([]model.PensionAccount, error) {
	var accounts []model.PensionAccount
	for rows.Next() {
		a, err := scanPensionAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pension account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (s *PensionStore) ListOwners(accountID string) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.name, p.avatar_emoji, p.color, p.user_id, p.created_at, p.updated_at
		 FROM profiles p
		 JOIN pension_account_owners o ON o.profile_id = p.id
		 WHERE o.account_id = ?
		 ORDER BY p.name ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pension account owners: %w", err)
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

// ReplaceOwners swaps the full owner set in one transaction.
func (s *PensionStore) ReplaceOwners(accountID string, profileIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pension_account_owners WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear pension account owners: %w", err)
	}
	for _, profileID := range profileIDs {
		if _, err := tx.Exec(
			`INSERT INTO pension_account_owners (account_id, profile_id) VALUES (?, ?)`,
			accountID, profileID,
		); err != nil {
			return fmt.Errorf("insert pension account owner: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PensionStore) CreateDeposit(accountID string, amount decimal.Decimal, depositedOn time.Time, note string) (*model.PensionDeposit, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO pension_deposits (id, account_id, amount, deposited_on, note) VALUES (?, ?, ?, ?, ?)`,
		id, accountID, amount, depositedOn.Format("2006-01-02"), note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pension deposit: %w", err)
	}
	return s.GetDeposit(id)
}

func (s *PensionStore) GetDeposit(id string) (*model.PensionDeposit, error) {
	row := s.db.QueryRow(`SELECT `+pensionDepositCols+` FROM pension_deposits WHERE id = ?`, id)
	d, err := scanPensionDeposit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pension deposit: %w", err)
	}
	return d, nil
}

func (s *PensionStore) DeleteDeposit(id string) error {
	_, err := s.db.Exec(`DELETE FROM pension_deposits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pension deposit: %w", err)
	}
	return nil
}

func (s *PensionStore) ListDeposits(accountID string) ([]model.PensionDeposit, error) {
	rows, err := s.db.Query(
		`SELECT `+pensionDepositCols+` FROM pension_deposits WHERE account_id = ? ORDER BY deposited_on DESC, rowid DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pension deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.PensionDeposit
	for rows.Next() {
		d, err := scanPensionDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pension deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}
	return deposits, rows.Err()
}
