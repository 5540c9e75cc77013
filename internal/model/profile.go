package model

import "time"

// Profile is a household-member persona. A profile may exist without a user:
// a family member who is tracked but cannot log in. UserID is set for at most
// one profile per user.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AvatarEmoji string    `json:"avatar_emoji"`
	Color       string    `json:"color"`
	UserID      *string   `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasUser reports whether this profile can authenticate.
func (p *Profile) HasUser() bool {
	return p.UserID != nil && *p.UserID != ""
}
