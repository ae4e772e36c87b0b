package models

import (
	"time"
)

// Profile represents a user profile in the system
type Profile struct {
	ID        string    `json:"id" db:"id"` // UUID that matches auth.users.id
	Email     string    `json:"email" db:"email"`
	Credits   int       `json:"credits" db:"credits"` // never negative, see ledger
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileView is what the dashboard shows for the signed-in user.
type ProfileView struct {
	Profile
	IsAdmin bool `json:"is_admin"`
}

// RoleAdmin is the user_roles entry that unlocks the admin interface.
const RoleAdmin = "admin"

// Identity is the authenticated caller, taken from the verified access token.
type Identity struct {
	UserID string
	Email  string
	Token  string
}

// NewProfileResponse is the response structure when a profile is ensured
type NewProfileResponse struct {
	Profile Profile `json:"profile"`
	Success bool    `json:"success"`
}
