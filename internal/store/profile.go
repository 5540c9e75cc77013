package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/mathom/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := scanner.Scan(&p.ID, &p.Name, &p.AvatarEmoji, &p.Color, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const profileCols = `id, name, avatar_emoji, color, user_id, created_at, updated_at`

// Create inserts a profile. userID is nil for tracked-only family members.
func (s *ProfileStore) Create(name, avatarEmoji, color string, userID *string) (*model.Profile, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, name, avatar_emoji, color, user_id) VALUES (?, ?, ?, ?, ?)`,
		id, name, avatarEmoji, color, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) GetByID(id string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByUserID(userID string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by user: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) Update(id, name, avatarEmoji, color string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET name = ?, avatar_emoji = ?, color = ?, updated_at = datetime('now') WHERE id = ?`,
		name, avatarEmoji, color, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// ListByHousehold returns the member roster of a household, in membership
// order, so callers see a stable roster across requests.
func (s *ProfileStore) ListByHousehold(householdID string) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.name, p.avatar_emoji, p.color, p.user_id, p.created_at, p.updated_at
		 FROM profiles p
		 JOIN household_members hm ON hm.profile_id = p.id
		 WHERE hm.household_id = ?
		 ORDER BY hm.created_at ASC, hm.rowid ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles by household: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}
