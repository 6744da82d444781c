package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// ErrInvalidSession is returned for any token that cannot be trusted.
var ErrInvalidSession = errors.New("session: invalid token")

// ErrSecretMissing indicates the signing secret is empty.
var ErrSecretMissing = errors.New("session: signing secret is empty")

// MinSecretLength is the recommended minimum length of the signing secret.
const MinSecretLength = 16

const defaultSessionTTL = time.Hour

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer for the supplied secret.
func NewSessionIssuer(secret, issuer string) (*SessionIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretMissing
	}
	return &SessionIssuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used for issuing and validating tokens.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue signs payload with the given lifetime.
func (s *SessionIssuer) Issue(payload domain.SessionPayload, ttl time.Duration) (string, time.Time, error) {
	subject := strings.TrimSpace(payload.SubjectID)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("session: subject is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	role := payload.Role
	if role == "" {
		role = domain.RoleUser
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	claims := SessionClaims{
		Username: payload.Username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses token and returns its payload. Every failure is reported as ErrInvalidSession.
func (s *SessionIssuer) Verify(token string) (domain.SessionPayload, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.SessionPayload{}, ErrInvalidSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return domain.SessionPayload{}, ErrInvalidSession
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.SessionPayload{}, ErrInvalidSession
	}

	payload := domain.SessionPayload{
		SubjectID: claims.Subject,
		Username:  claims.Username,
		Role:      domain.Role(claims.Role),
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	if payload.Role == "" {
		payload.Role = domain.RoleUser
	}

	return payload, nil
}
