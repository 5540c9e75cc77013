package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/mathom/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.Description, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.ProfileID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, description, created_at, updated_at`
const householdMemberCols = `id, household_id, profile_id, role, created_at, updated_at`

// OnboardUser creates the caller's profile, their first household, and the
// owner membership in one transaction, so a user can never end up with a
// profile that belongs to no household.
func (s *HouseholdStore) OnboardUser(userID, profileName, householdName string) (*model.Profile, *model.Household, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	profileID := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO profiles (id, name, user_id) VALUES (?, ?, ?)`,
		profileID, profileName, userID,
	); err != nil {
		return nil, nil, fmt.Errorf("insert profile: %w", err)
	}

	householdID := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO households (id, name) VALUES (?, ?)`,
		householdID, householdName,
	); err != nil {
		return nil, nil, fmt.Errorf("insert household: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (id, household_id, profile_id, role) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), householdID, profileID, model.RoleOwner,
	); err != nil {
		return nil, nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit onboarding: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, profileID)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, nil, fmt.Errorf("get profile: %w", err)
	}
	household, err := s.GetByID(householdID)
	if err != nil {
		return nil, nil, err
	}
	return profile, household, nil
}

// CreateWithOwner creates a household and makes the given profile its owner,
// in one transaction.
func (s *HouseholdStore) CreateWithOwner(name, description, ownerProfileID string) (*model.Household, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	householdID := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO households (id, name, description) VALUES (?, ?, ?)`,
		householdID, name, description,
	); err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (id, household_id, profile_id, role) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), householdID, ownerProfileID, model.RoleOwner,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit household: %w", err)
	}
	return s.GetByID(householdID)
}

func (s *HouseholdStore) GetByID(id string) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) Update(id, name, description string) (*model.Household, error) {
	_, err := s.db.Exec(
		`UPDATE households SET name = ?, description = ?, updated_at = datetime('now') WHERE id = ?`,
		name, description, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a household and sweeps any profile whose last membership
// went with it, in one transaction. A swept user-backed profile frees its
// user to onboard again from scratch.
func (s *HouseholdStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM households WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM profiles WHERE id NOT IN (SELECT profile_id FROM household_members)`,
	); err != nil {
		return fmt.Errorf("sweep orphaned profiles: %w", err)
	}
	return tx.Commit()
}

// ListAll returns every household, oldest first. Used by the snapshot run,
// which iterates households as a system principal.
func (s *HouseholdStore) ListAll() ([]model.Household, error) {
	rows, err := s.db.Query(`SELECT ` + householdCols + ` FROM households ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	defer rows.Close()

	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

// AddMember adds an existing profile to a household. The unique constraint
// on (household_id, profile_id) rejects duplicates.
func (s *HouseholdStore) AddMember(householdID, profileID, role string) (*model.HouseholdMember, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO household_members (id, household_id, profile_id, role) VALUES (?, ?, ?, ?)`,
		id, householdID, profileID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+householdMemberCols+` FROM household_members WHERE id = ?`, id)
	return scanHouseholdMember(row)
}

// AddTrackedMember creates a profile with no user and its membership in one
// transaction, for family members who are tracked but cannot log in.
func (s *HouseholdStore) AddTrackedMember(householdID, name, avatarEmoji, color, role string) (*model.Profile, *model.HouseholdMember, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	profileID := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO profiles (id, name, avatar_emoji, color) VALUES (?, ?, ?, ?)`,
		profileID, name, avatarEmoji, color,
	); err != nil {
		return nil, nil, fmt.Errorf("insert profile: %w", err)
	}

	memberID := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO household_members (id, household_id, profile_id, role) VALUES (?, ?, ?, ?)`,
		memberID, householdID, profileID, role,
	); err != nil {
		return nil, nil, fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit tracked member: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, profileID)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, nil, fmt.Errorf("get profile: %w", err)
	}
	row = s.db.QueryRow(`SELECT `+householdMemberCols+` FROM household_members WHERE id = ?`, memberID)
	member, err := scanHouseholdMember(row)
	if err != nil {
		return nil, nil, fmt.Errorf("get membership: %w", err)
	}
	return profile, member, nil
}

func (s *HouseholdStore) RemoveMember(householdID, profileID string) error {
	_, err := s.db.Exec(
		`DELETE FROM household_members WHERE household_id = ? AND profile_id = ?`,
		householdID, profileID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *HouseholdStore) GetMember(householdID, profileID string) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND profile_id = ?`,
		householdID, profileID,
	)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) ListMembers(householdID string) ([]model.HouseholdMember, error) {
	rows, err := s.db.Query(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? ORDER BY created_at ASC, rowid ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.HouseholdMember
	for rows.Next() {
		m, err := scanHouseholdMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *HouseholdStore) UpdateMemberRole(householdID, profileID, role string) (*model.HouseholdMember, error) {
	_, err := s.db.Exec(
		`UPDATE household_members SET role = ?, updated_at = datetime('now') WHERE household_id = ? AND profile_id = ?`,
		role, householdID, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMember(householdID, profileID)
}

// ListMembershipsForProfile returns the households a profile belongs to with
// the profile's role in each, ordered by membership creation time. The first
// entry is the default active household when a request names none; the rowid
// tie-break keeps that choice stable for memberships created in the same
// second.
func (s *HouseholdStore) ListMembershipsForProfile(profileID string) ([]model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.description, h.created_at, h.updated_at, hm.role
		 FROM households h
		 JOIN household_members hm ON h.id = hm.household_id
		 WHERE hm.profile_id = ?
		 ORDER BY hm.created_at ASC, hm.rowid ASC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships for profile: %w", err)
	}
	defer rows.Close()

	var memberships []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.Household.ID, &m.Household.Name, &m.Household.Description,
			&m.Household.CreatedAt, &m.Household.UpdatedAt, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (s *HouseholdStore) CountMembershipsForProfile(profileID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM household_members WHERE profile_id = ?`,
		profileID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return count, nil
}
