package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/repository"
)

const (
	codesTable     = "verification_codes"
	issuancesTable = "verification_code_issuances"
)

// recordIssuance wraps a statement returning (id, user_id, kind, issued_at) so the
// issuance row is written atomically with it.
const recordIssuance = `WITH issued AS (%s)
INSERT INTO ` + issuancesTable + ` (code_id, user_id, kind, issued_at)
SELECT id, user_id, kind, issued_at FROM issued`

var codeColumns = []string{
	"id",
	"user_id",
	"code",
	"link_token_hash",
	"kind",
	"status",
	"created_at",
	"expires_at",
	"verified_at",
	"issue_count",
	"last_issued_at",
	"failed_attempts",
}

// VerificationCodeRepository implements port.VerificationCodeStore using PostgreSQL.
// The raw link token is never written.
type VerificationCodeRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	timeout time.Duration
}

// NewVerificationCodeRepository constructs a repository backed by exec.
func NewVerificationCodeRepository(exec pgExecutor, timeout time.Duration) *VerificationCodeRepository {
	return &VerificationCodeRepository{
		exec:    exec,
		builder: newBuilder(),
		timeout: timeout,
	}
}

// Insert persists a new code and records its first issuance.
func (r *VerificationCodeRepository) Insert(ctx context.Context, code domain.VerificationCode) error {
	status := code.Status
	if status == "" {
		status = domain.CodeStatusPending
	}
	issued := code.IssueCount
	if issued <= 0 {
		issued = 1
	}
	lastIssued := code.LastIssuedAt
	if lastIssued.IsZero() {
		lastIssued = code.CreatedAt
	}

	stmt, args, err := r.builder.Insert(codesTable).
		Columns(codeColumns...).
		Values(
			code.ID,
			code.UserID,
			code.Code,
			code.LinkTokenHash,
			string(code.Kind),
			string(status),
			code.CreatedAt,
			code.ExpiresAt,
			code.VerifiedAt,
			issued,
			lastIssued,
			code.FailedAttempts,
		).
		Suffix("RETURNING id, user_id, kind, last_issued_at AS issued_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert verification code sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	if _, err := r.exec.Exec(ctx, fmt.Sprintf(recordIssuance, stmt), args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert verification code: %w", err)
	}
	return nil
}

// FindActive returns the newest pending, unexpired code for userID and kind.
func (r *VerificationCodeRepository) FindActive(ctx context.Context, userID string, kind domain.CodeKind, now time.Time) (*domain.VerificationCode, error) {
	return r.findOne(ctx, squirrel.And{
		squirrel.Eq{"user_id": userID, "kind": string(kind), "status": string(domain.CodeStatusPending)},
		squirrel.Gt{"expires_at": now},
	})
}

// FindPending matches a pending code by digits and link token hash. Expiry is left to the caller.
func (r *VerificationCodeRepository) FindPending(ctx context.Context, kind domain.CodeKind, code, linkTokenHash string) (*domain.VerificationCode, error) {
	code = strings.TrimSpace(code)
	linkTokenHash = strings.TrimSpace(linkTokenHash)
	if code == "" || linkTokenHash == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, squirrel.Eq{
		"kind":            string(kind),
		"status":          string(domain.CodeStatusPending),
		"code":            code,
		"link_token_hash": linkTokenHash,
	})
}

// FindPendingByHash matches a pending code by link token hash only.
func (r *VerificationCodeRepository) FindPendingByHash(ctx context.Context, kind domain.CodeKind, linkTokenHash string) (*domain.VerificationCode, error) {
	linkTokenHash = strings.TrimSpace(linkTokenHash)
	if linkTokenHash == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, squirrel.Eq{
		"kind":            string(kind),
		"status":          string(domain.CodeStatusPending),
		"link_token_hash": linkTokenHash,
	})
}

// MarkVerified flips a pending code to verified. The status guard makes a
// concurrent second consume affect zero rows.
func (r *VerificationCodeRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(codesTable).
		Set("status", string(domain.CodeStatusVerified)).
		Set("verified_at", at).
		Where(squirrel.Eq{"id": id, "status": string(domain.CodeStatusPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark verification code verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Reissue bumps the issue count of a pending code and records the issuance.
func (r *VerificationCodeRepository) Reissue(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(codesTable).
		Set("issue_count", squirrel.Expr("issue_count + 1")).
		Set("last_issued_at", at).
		Where(squirrel.Eq{"id": id, "status": string(domain.CodeStatusPending)}).
		Suffix("RETURNING id, user_id, kind, last_issued_at AS issued_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build reissue sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tag, err := r.exec.Exec(ctx, fmt.Sprintf(recordIssuance, stmt), args...)
	if err != nil {
		return fmt.Errorf("reissue verification code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordFailedAttempt counts a miss against a pending code; the miss that reaches
// maxAttempts also expires it.
func (r *VerificationCodeRepository) RecordFailedAttempt(ctx context.Context, id string, maxAttempts int) error {
	stmt, args, err := r.builder.Update(codesTable).
		Set("failed_attempts", squirrel.Expr("failed_attempts + 1")).
		Set("status", squirrel.Expr("CASE WHEN failed_attempts + 1 >= ? THEN ? ELSE status END", maxAttempts, string(domain.CodeStatusExpired))).
		Where(squirrel.Eq{"id": id, "status": string(domain.CodeStatusPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record failed attempt sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountIssuedSince counts issuance records at or after since. Every hand-out of a
// reused code has its own record, so older hand-outs fall out of the window.
func (r *VerificationCodeRepository) CountIssuedSince(ctx context.Context, userID string, kind domain.CodeKind, since time.Time) (int, error) {
	stmt, args, err := r.builder.Select("count(*)").
		From(issuancesTable).
		Where(squirrel.Eq{"user_id": userID, "kind": string(kind)}).
		Where(squirrel.GtOrEq{"issued_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count issuances sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count issuances: %w", err)
	}
	return count, nil
}

// DeleteExpired removes expired rows and pending rows past their expiry.
func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(codesTable).
		Where(squirrel.Or{
			squirrel.And{
				squirrel.Eq{"status": string(domain.CodeStatusPending)},
				squirrel.Lt{"expires_at": now},
			},
			squirrel.Eq{"status": string(domain.CodeStatusExpired)},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PruneIssuances removes issuance records older than before.
func (r *VerificationCodeRepository) PruneIssuances(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(issuancesTable).
		Where(squirrel.Lt{"issued_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune issuances sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("prune issuances: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *VerificationCodeRepository) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.VerificationCode, error) {
	stmt, args, err := r.builder.
		Select(codeColumns...).
		From(codesTable).
		Where(where).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification code sql: %w", err)
	}

	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	var (
		code   domain.VerificationCode
		kind   string
		status string
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.LinkTokenHash,
		&kind,
		&status,
		&code.CreatedAt,
		&code.ExpiresAt,
		&code.VerifiedAt,
		&code.IssueCount,
		&code.LastIssuedAt,
		&code.FailedAttempts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification code: %w", err)
	}

	code.Kind = domain.CodeKind(kind)
	code.Status = domain.CodeStatus(status)
	return &code, nil
}
