package domain

import "time"

// UserRegisteredEvent represents the payload for user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	Role         Role
	RegisteredAt time.Time
}

// PasswordChangedEvent represents the payload for user.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	// Reason is "change" for authenticated changes and "reset" for recovery flows.
	Reason string
}

// VerificationCodeIssuedEvent represents the payload for verification.code.issued messages.
// It never carries the code or the link token.
type VerificationCodeIssuedEvent struct {
	EventID     string
	UserID      string
	CodeID      string
	Kind        CodeKind
	Reused      bool
	Destination string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// UserVerifiedEvent represents the payload for user.verified messages.
type UserVerifiedEvent struct {
	EventID    string
	UserID     string
	VerifiedAt time.Time
}
