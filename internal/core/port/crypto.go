package port

import (
	"time"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// SessionIssuer signs and verifies stateless session tokens.
type SessionIssuer interface {
	Issue(payload domain.SessionPayload, ttl time.Duration) (token string, expiresAt time.Time, err error)
	Verify(token string) (domain.SessionPayload, error)
}
