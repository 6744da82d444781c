package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, now time.Time) *SessionIssuer {
	t.Helper()
	issuer, err := NewSessionIssuer(testSecret, "credential-service")
	if err != nil {
		t.Fatalf("NewSessionIssuer returned error: %v", err)
	}
	return issuer.WithClock(func() time.Time { return now })
}

func TestSessionIssuerRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)

	token, expiresAt, err := issuer.Issue(domain.SessionPayload{SubjectID: "user-1", Username: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	payload, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if payload.SubjectID != "user-1" || payload.Username != "alice" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Role != domain.RoleUser {
		t.Fatalf("expected default role USER, got %s", payload.Role)
	}
	if !payload.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry mismatch: %s vs %s", payload.ExpiresAt, expiresAt)
	}
}

func TestSessionIssuerRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)

	token, _, err := issuer.Issue(domain.SessionPayload{SubjectID: "user-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	issuer.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestSessionIssuerRejectsTampering(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(t, now)

	token, _, err := issuer.Issue(domain.SessionPayload{SubjectID: "user-1", Role: domain.RoleUser}, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other, err := NewSessionIssuer("another-secret-of-sufficient-size", "credential-service")
	if err != nil {
		t.Fatalf("NewSessionIssuer returned error: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected signature mismatch to fail, got %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}

	for _, malformed := range []string{"", "abc", "a.b.c"} {
		if _, err := issuer.Verify(malformed); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected malformed %q to fail, got %v", malformed, err)
		}
	}
}

func TestSessionIssuerRejectsUnexpectedAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())

	claims := SessionClaims{
		Role: "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "credential-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := issuer.Verify(unsigned); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected alg=none to fail, got %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign hs512 token: %v", err)
	}
	if _, err := issuer.Verify(hs512); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected HS512 to fail, got %v", err)
	}
}

func TestSessionIssuerRequiresSubjectAndSecret(t *testing.T) {
	if _, err := NewSessionIssuer("  ", "x"); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}

	issuer := newTestIssuer(t, time.Now())
	if _, _, err := issuer.Issue(domain.SessionPayload{}, time.Hour); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
