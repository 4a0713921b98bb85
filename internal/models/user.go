package models

import "time"

// User is a registered account. ID is the uid issued by the identity provider.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	Disabled  bool      `json:"disabled" db:"disabled"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is a row of the admin user listing.
type UserSummary struct {
	User
	StoriesCount int `json:"stories_count" db:"stories_count"`
}

// Identity is the verified caller returned by the token verifier.
type Identity struct {
	UID     string `json:"uid"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	// Provider names the verifier that accepted the token.
	Provider string `json:"provider"`
}

// Gin context keys set by the auth middleware.
const (
	CtxKeyUserID   = "user_id"
	CtxKeyIdentity = "identity"
)
