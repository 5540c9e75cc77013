package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/mathom/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, created_at, updated_at`

// UpsertByEmail creates a user the first time an email is seen and syncs the
// display name on every later call. The email unique constraint makes the
// insert at-most-once, so concurrent first sign-ins are safe.
func (s *UserStore) UpsertByEmail(email, name string) (*model.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET name = excluded.name, updated_at = datetime('now')`,
		uuid.NewString(), email, name,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListWithoutMemberships returns users whose profile, if they have one,
// belongs to no household. Snapshot runs give these users a per-user row
// instead of a household row.
func (s *UserStore) ListWithoutMemberships() ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT ` + userCols + ` FROM users u
		 WHERE NOT EXISTS (
			SELECT 1 FROM profiles p
			JOIN household_members hm ON hm.profile_id = p.id
			WHERE p.user_id = u.id
		 )
		 ORDER BY u.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users without memberships: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
