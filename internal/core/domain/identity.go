package domain

import (
	"strings"
	"time"
)

// Role is the coarse authorization level embedded in session tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID              string
	Username        string
	Email           string
	NormalizedEmail string
	PasswordHash    string
	Role            Role
	Verified        bool
	VerifiedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastLogin       *time.Time
}

// HasPassword reports whether the account can authenticate with a password.
// OAuth-only accounts have no hash.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Sanitized returns a copy without the password hash, suitable for responses and logs.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// MarkVerified records email verification. It returns false if the user was already verified.
func (u *User) MarkVerified(at time.Time) bool {
	if u.Verified {
		return false
	}
	t := at
	u.Verified = true
	u.VerifiedAt = &t
	return true
}

// NewUser carries the fields required to create an account.
type NewUser struct {
	Username        string
	Email           string
	NormalizedEmail string
	PasswordHash    string
	Role            Role
}

// IdentityQuery selects a user by any of the supplied fields, case-insensitively.
// Empty fields are ignored; UsernameOrEmail is matched against both columns.
type IdentityQuery struct {
	UsernameOrEmail string
	Username        string
	Email           string
	NormalizedEmail string
}

// IsEmpty reports whether no lookup field is set.
func (q IdentityQuery) IsEmpty() bool {
	return strings.TrimSpace(q.UsernameOrEmail) == "" &&
		strings.TrimSpace(q.Username) == "" &&
		strings.TrimSpace(q.Email) == "" &&
		strings.TrimSpace(q.NormalizedEmail) == ""
}
