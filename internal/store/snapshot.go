package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/model"
)

type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func scanSnapshot(scanner interface{ Scan(...any) error }) (*model.NetWorthSnapshot, error) {
	var s model.NetWorthSnapshot
	err := scanner.Scan(&s.ID, &s.HouseholdID, &s.UserID, &s.NetWorth, &s.TakenAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const snapshotCols = `id, household_id, user_id, net_worth, taken_at`

// InsertForHousehold appends a snapshot row for a household. Snapshots are
// never updated or deleted.
func (s *SnapshotStore) InsertForHousehold(householdID string, netWorth decimal.Decimal) (*model.NetWorthSnapshot, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO net_worth_snapshots (id, household_id, net_worth) VALUES (?, ?, ?)`,
		id, householdID, netWorth,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household snapshot: %w", err)
	}
	return s.getByID(id)
}

// InsertForUser appends a snapshot row for a user with no household.
func (s *SnapshotStore) InsertForUser(userID string, netWorth decimal.Decimal) (*model.NetWorthSnapshot, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO net_worth_snapshots (id, user_id, net_worth) VALUES (?, ?, ?)`,
		id, userID, netWorth,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user snapshot: %w", err)
	}
	return s.getByID(id)
}

func (s *SnapshotStore) getByID(id string) (*model.NetWorthSnapshot, error) {
	row := s.db.QueryRow(`SELECT `+snapshotCols+` FROM net_worth_snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

func (s *SnapshotStore) ListForHousehold(householdID string, limit int) ([]model.NetWorthSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT `+snapshotCols+` FROM net_worth_snapshots WHERE household_id = ? ORDER BY taken_at DESC, rowid DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list household snapshots: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

func (s *SnapshotStore) ListForUser(userID string, limit int) ([]model.NetWorthSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT `+snapshotCols+` FROM net_worth_snapshots WHERE user_id = ? ORDER BY taken_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list user snapshots: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

func collectSnapshots(rows *sql.Rows) ([]model.NetWorthSnapshot, error) {
	var snapshots []model.NetWorthSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, rows.Err()
}
