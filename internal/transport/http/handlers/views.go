package handlers

import (
	"time"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// UserView is the public shape of an account. It never carries the password hash.
type UserView struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Verified   bool        `json:"verified"`
	VerifiedAt *time.Time  `json:"verifiedAt,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	LastLogin  *time.Time  `json:"lastLogin,omitempty"`
}

func newUserView(u *domain.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		Verified:   u.Verified,
		VerifiedAt: u.VerifiedAt,
		CreatedAt:  u.CreatedAt,
		LastLogin:  u.LastLogin,
	}
}

// IssuanceView answers code requests. Hash, DevCode and DevToken are only set in development.
type IssuanceView struct {
	Hash            string    `json:"hash,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt"`
	ExpireInSeconds int64     `json:"expireInSeconds"`
	DevCode         string    `json:"devCode,omitempty"`
	DevToken        string    `json:"devToken,omitempty"`
}

// StatusView answers GET /auth/status.
type StatusView struct {
	Authenticated bool      `json:"authenticated"`
	User          *UserView `json:"user,omitempty"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
