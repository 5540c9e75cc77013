package model

import "time"

// User is an authenticated identity, created on first successful sign-in by
// upserting on email. Users are never deleted; only the display name is
// synced from the identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
