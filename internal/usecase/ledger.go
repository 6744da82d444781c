package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/security"
	"github.com/ulut0002/base-backend/internal/repository"
)

const (
	defaultCodeLength  = 5
	defaultMaxAttempts = 5
)

var (
	// ErrCodeNotFound indicates no pending code matches, including one consumed by a concurrent request.
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrCodeExpired indicates a matching pending code whose expiry has passed.
	ErrCodeExpired = errors.New("verification code expired")
)

// ConsumeQuery identifies a code. LinkToken is the raw token from an email link and
// is hashed before lookup; LinkTokenHash is used as is.
type ConsumeQuery struct {
	Code          string
	LinkTokenHash string
	LinkToken     string
}

func (q ConsumeQuery) hash() string {
	if h := strings.TrimSpace(q.LinkTokenHash); h != "" {
		return h
	}
	if raw := strings.TrimSpace(q.LinkToken); raw != "" {
		return security.HashToken(raw)
	}
	return ""
}

// VerificationCodeLedger issues and consumes single-use verification codes.
// Callers check FindActive before Create so at most one code per user and kind is pending.
type VerificationCodeLedger struct {
	store       port.VerificationCodeStore
	codeLength  int
	maxAttempts int
	entropy     io.Reader
	now         func() time.Time
}

// NewVerificationCodeLedger constructs a ledger over store.
func NewVerificationCodeLedger(store port.VerificationCodeStore, codeLength int) *VerificationCodeLedger {
	if codeLength <= 0 {
		codeLength = defaultCodeLength
	}
	return &VerificationCodeLedger{
		store:       store,
		codeLength:  codeLength,
		maxAttempts: defaultMaxAttempts,
		entropy:     rand.Reader,
		now:         time.Now,
	}
}

// WithMaxAttempts sets how many wrong codes a link token survives before its code expires.
func (l *VerificationCodeLedger) WithMaxAttempts(n int) *VerificationCodeLedger {
	if n > 0 {
		l.maxAttempts = n
	}
	return l
}

// WithClock overrides the ledger time source.
func (l *VerificationCodeLedger) WithClock(now func() time.Time) *VerificationCodeLedger {
	if now != nil {
		l.now = now
	}
	return l
}

// FindActive returns the pending, unexpired code for the user and kind, or nil when there is none.
func (l *VerificationCodeLedger) FindActive(ctx context.Context, userID string, kind domain.CodeKind) (*domain.VerificationCode, error) {
	code, err := l.store.FindActive(ctx, userID, kind, l.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active code: %w", err)
	}
	return code, nil
}

// Create issues a new pending code. Only the link token hash is stored; the returned
// record carries the raw LinkToken for delivery.
func (l *VerificationCodeLedger) Create(ctx context.Context, userID string, kind domain.CodeKind, ttl time.Duration) (*domain.VerificationCode, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("create code: ttl must be positive")
	}

	now := l.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), l.entropy)
	if err != nil {
		return nil, fmt.Errorf("generate code id: %w", err)
	}
	digits, err := security.GenerateNumericCode(l.codeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	token, err := security.GenerateLinkToken()
	if err != nil {
		return nil, fmt.Errorf("generate link token: %w", err)
	}

	code := domain.VerificationCode{
		ID:            id.String(),
		UserID:        userID,
		Code:          digits,
		LinkTokenHash: security.HashToken(token),
		Kind:          kind,
		Status:        domain.CodeStatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		IssueCount:    1,
		LastIssuedAt:  now,
	}
	if err := l.store.Insert(ctx, code); err != nil {
		return nil, fmt.Errorf("insert code: %w", err)
	}

	code.LinkToken = token
	return &code, nil
}

// Reuse hands out an active code again. It counts toward the issuance rate limit
// and fails with ErrCodeNotFound when the code stopped being pending meanwhile.
func (l *VerificationCodeLedger) Reuse(ctx context.Context, code *domain.VerificationCode) error {
	at := l.now().UTC()
	if err := l.store.Reissue(ctx, code.ID, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("reuse code: %w", err)
	}
	code.IssueCount++
	code.LastIssuedAt = at
	return nil
}

// Lookup finds the pending code matching q without changing it. A record past its
// expiry yields ErrCodeExpired. Wrong digits paired with a known link token count as
// a failed attempt against that code.
func (l *VerificationCodeLedger) Lookup(ctx context.Context, q ConsumeQuery, kind domain.CodeKind) (*domain.VerificationCode, error) {
	hash := q.hash()
	digits := strings.TrimSpace(q.Code)

	var (
		code *domain.VerificationCode
		err  error
	)
	switch {
	case hash == "":
		return nil, ErrCodeNotFound
	case digits != "":
		code, err = l.store.FindPending(ctx, kind, digits, hash)
		if errors.Is(err, repository.ErrNotFound) {
			if ferr := l.recordMiss(ctx, kind, hash); ferr != nil {
				return nil, ferr
			}
		}
	default:
		code, err = l.store.FindPendingByHash(ctx, kind, hash)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("lookup code: %w", err)
	}

	if code.IsExpired(l.now()) {
		return code, ErrCodeExpired
	}
	return code, nil
}

func (l *VerificationCodeLedger) recordMiss(ctx context.Context, kind domain.CodeKind, hash string) error {
	target, err := l.store.FindPendingByHash(ctx, kind, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup code: %w", err)
	}
	if err := l.store.RecordFailedAttempt(ctx, target.ID, l.maxAttempts); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	return nil
}

// Claim marks a looked-up code verified. Only one caller can claim a code; the others get ErrCodeNotFound.
func (l *VerificationCodeLedger) Claim(ctx context.Context, code *domain.VerificationCode) error {
	at := l.now().UTC()
	if err := l.store.MarkVerified(ctx, code.ID, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("claim code: %w", err)
	}
	code.Verify(at)
	return nil
}

// Consume looks up and claims a code in one step.
func (l *VerificationCodeLedger) Consume(ctx context.Context, q ConsumeQuery, kind domain.CodeKind) (*domain.VerificationCode, error) {
	code, err := l.Lookup(ctx, q, kind)
	if err != nil {
		return code, err
	}
	if err := l.Claim(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// CountSince counts issuances of kind for the user at or after since, over codes in any status.
// A reused code counts once per hand-out, each at its own time.
func (l *VerificationCodeLedger) CountSince(ctx context.Context, userID string, kind domain.CodeKind, since time.Time) (int, error) {
	n, err := l.store.CountIssuedSince(ctx, userID, kind, since.UTC())
	if err != nil {
		return 0, fmt.Errorf("count codes: %w", err)
	}
	return n, nil
}

// SweepExpired deletes expired codes and returns how many were removed.
func (l *VerificationCodeLedger) SweepExpired(ctx context.Context) (int, error) {
	n, err := l.store.DeleteExpired(ctx, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep codes: %w", err)
	}
	return n, nil
}

// PruneIssuances drops issuance records older than retain. retain must cover the
// longest request window in use.
func (l *VerificationCodeLedger) PruneIssuances(ctx context.Context, retain time.Duration) (int, error) {
	n, err := l.store.PruneIssuances(ctx, l.now().UTC().Add(-retain))
	if err != nil {
		return 0, fmt.Errorf("prune issuances: %w", err)
	}
	return n, nil
}
