package port

import (
	"context"
	"time"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// VerificationCodeStore persists verification codes. Only link token hashes are stored.
type VerificationCodeStore interface {
	Insert(ctx context.Context, code domain.VerificationCode) error
	// FindActive returns the newest pending code for the user and kind that expires after now.
	FindActive(ctx context.Context, userID string, kind domain.CodeKind, now time.Time) (*domain.VerificationCode, error)
	// FindPending matches a pending code by both digits and link token hash.
	FindPending(ctx context.Context, kind domain.CodeKind, code, linkTokenHash string) (*domain.VerificationCode, error)
	// FindPendingByHash matches a pending code by link token hash only.
	FindPendingByHash(ctx context.Context, kind domain.CodeKind, linkTokenHash string) (*domain.VerificationCode, error)
	// MarkVerified transitions a pending code to verified. It returns repository.ErrNotFound
	// when the code is no longer pending.
	MarkVerified(ctx context.Context, id string, at time.Time) error
	// Reissue records another hand-out of a pending code. It returns repository.ErrNotFound
	// when the code is no longer pending.
	Reissue(ctx context.Context, id string, at time.Time) error
	// RecordFailedAttempt counts a wrong code against a pending code and expires it once
	// maxAttempts is reached. It returns repository.ErrNotFound when the code is no longer pending.
	RecordFailedAttempt(ctx context.Context, id string, maxAttempts int) error
	// CountIssuedSince counts issuances of kind for the user at or after since. Insert and
	// Reissue each record one issuance; swept codes keep theirs.
	CountIssuedSince(ctx context.Context, userID string, kind domain.CodeKind, since time.Time) (int, error)
	// DeleteExpired removes expired rows and pending rows past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	// PruneIssuances drops issuance records older than before.
	PruneIssuances(ctx context.Context, before time.Time) (int, error)
}
