package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/model"
)

type AssetStore struct {
	db *sql.DB
}

func NewAssetStore(db *sql.DB) *AssetStore {
	return &AssetStore{db: db}
}

func scanMiscAsset(scanner interface{ Scan(...any) error }) (*model.MiscAsset, error) {
	var a model.MiscAsset
	err := scanner.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Value, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const miscAssetCols = `id, user_id, name, asset_type, value, created_at, updated_at`

// Create inserts an asset and its owner-profile set in one transaction. The
// liability sign convention is applied here so a loan or mortgage can never
// be stored positive, whatever the caller sent.
func (s *AssetStore) Create(userID, name string, assetType model.AssetType, value decimal.Decimal, ownerProfileIDs []string) (*model.MiscAsset, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO misc_assets (id, user_id, name, asset_type, value) VALUES (?, ?, ?, ?, ?)`,
		id, userID, name, string(assetType), assetType.NormalizeValue(value),
	); err != nil {
		return nil, fmt.Errorf("insert misc asset: %w", err)
	}
	for _, profileID := range ownerProfileIDs {
		if _, err := tx.Exec(
			`INSERT INTO misc_asset_owners (asset_id, profile_id) VALUES (?, ?)`,
			id, profileID,
		); err != nil {
			return nil, fmt.Errorf("insert misc asset owner: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit misc asset: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssetStore) GetByID(id string) (*model.MiscAsset, error) {
	row := s.db.QueryRow(`SELECT `+miscAssetCols+` FROM misc_assets WHERE id = ?`, id)
	a, err := scanMiscAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get misc asset: %w", err)
	}
	return a, nil
}

// Update rewrites name, type and value. The sign convention is re-applied
// against the new type on every update.
func (s *AssetStore) Update(id, name string, assetType model.AssetType, value decimal.Decimal) (*model.MiscAsset, error) {
	_, err := s.db.Exec(
		`UPDATE misc_assets SET name = ?, asset_type = ?, value = ?, updated_at = datetime('now') WHERE id = ?`,
		name, string(assetType), assetType.NormalizeValue(value), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update misc asset: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssetStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM misc_assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete misc asset: %w", err)
	}
	return nil
}

// ListForUser returns the assets a user created. Mutation rights follow this
// list; household dashboards use ListForHousehold instead.
func (s *AssetStore) ListForUser(userID string) ([]model.MiscAsset, error) {
	rows, err := s.db.Query(
		`SELECT `+miscAssetCols+` FROM misc_assets WHERE user_id = ? ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list misc assets for user: %w", err)
	}
	defer rows.Close()
	return collectMiscAssets(rows)
}

// ListForHousehold returns assets whose owner-profile set intersects the
// household's member profiles.
func (s *AssetStore) ListForHousehold(householdID string) ([]model.MiscAsset, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT a.id, a.user_id, a.name, a.asset_type, a.value, a.created_at, a.updated_at
		 FROM misc_assets a
		 JOIN misc_asset_owners o ON o.asset_id = a.id
		 JOIN household_members hm ON hm.profile_id = o.profile_id
		 WHERE hm.household_id = ?
		 ORDER BY a.name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list misc assets for household: %w", err)
	}
	defer rows.Close()
	return collectMiscAssets(rows)
}

func (s *AssetStore) ListOwners(assetID string) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.name, p.avatar_emoji, p.color, p.user_id, p.created_at, p.updated_at
		 FROM profiles p
		 JOIN misc_asset_owners o ON o.profile_id = p.id
		 WHERE o.asset_id = ?
		 ORDER BY p.name ASC`,
		assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list misc asset owners: %w", err)
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

// ReplaceOwners swaps the full owner set in one transaction, like the account
// stores do.
func (s *AssetStore) ReplaceOwners(assetID string, profileIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM misc_asset_owners WHERE asset_id = ?`, assetID); err != nil {
		return fmt.Errorf("clear misc asset owners: %w", err)
	}
	for _, profileID := range profileIDs {
		if _, err := tx.Exec(
			`INSERT INTO misc_asset_owners (asset_id, profile_id) VALUES (?, ?)`,
			assetID, profileID,
		); err != nil {
			return fmt.Errorf("insert misc asset owner: %w", err)
		}
	}
	return tx.Commit()
}

func collectMiscAssets(rows *sql.Rows) ([]model.MiscAsset, error) {
	var assets []model.MiscAsset
	for rows.Next() {
		a, err := scanMiscAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan misc asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}
