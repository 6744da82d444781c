package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/logger"
	"github.com/ulut0002/base-backend/internal/infra/mail"
	"github.com/ulut0002/base-backend/internal/infra/telemetry"
	"github.com/ulut0002/base-backend/internal/repository"
)

const (
	defaultSweepTimeout = 30 * time.Second

	resetLinkPath  = "/reset-password"
	verifyLinkPath = "/verify-account"
)

// RecoveryEngine drives password reset and email verification through the code ledger.
type RecoveryEngine struct {
	cfg          *config.AppConfig
	auth         *AuthService
	users        port.CredentialStore
	ledger       *VerificationCodeLedger
	mailer       port.MailDispatcher
	events       port.EventPublisher
	metrics      *telemetry.RecoveryMetrics
	logger       *zap.Logger
	now          func() time.Time
	sweepTimeout time.Duration
	detach       func(func())
}

// IssuanceResult describes a handed-out code. LinkToken is only set when a new code was
// created; a reused code can still be redeemed with Code and LinkTokenHash.
type IssuanceResult struct {
	Code            string
	LinkToken       string
	LinkTokenHash   string
	UserID          string
	ExpiresAt       time.Time
	ExpireInSeconds int64
	Reused          bool
	Issues          *issue.Collector
}

// Succeeded reports whether a code was handed out.
func (r IssuanceResult) Succeeded() bool {
	return r.Code != "" && !r.Issues.HasErrors()
}

// ResetPasswordInput redeems a password reset code. Either Hash or the raw Token from the
// email link identifies the code together with Code.
type ResetPasswordInput struct {
	Code               string
	Hash               string
	Token              string
	NewPassword        string
	NewPasswordConfirm *string
}

// VerificationTarget selects the account to verify by id or email.
type VerificationTarget struct {
	UserID string
	Email  string
}

// NewRecoveryEngine constructs a RecoveryEngine. mailer, events and metrics may be nil.
func NewRecoveryEngine(cfg *config.AppConfig, auth *AuthService, users port.CredentialStore, ledger *VerificationCodeLedger, mailer port.MailDispatcher, events port.EventPublisher, metrics *telemetry.RecoveryMetrics, log *zap.Logger) *RecoveryEngine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	return &RecoveryEngine{
		cfg:          cfg,
		auth:         auth,
		users:        users,
		ledger:       ledger,
		mailer:       mailer,
		events:       events,
		metrics:      metrics,
		logger:       log,
		now:          time.Now,
		sweepTimeout: defaultSweepTimeout,
		detach:       func(f func()) { go f() },
	}
}

// WithClock overrides the time source of the engine and its ledger.
func (e *RecoveryEngine) WithClock(now func() time.Time) *RecoveryEngine {
	if now != nil {
		e.now = now
		e.ledger.WithClock(now)
	}
	return e
}

// RequestPasswordReset hands out a password reset code for the account named by identifier.
func (e *RecoveryEngine) RequestPasswordReset(ctx context.Context, identifier string, sendEmail bool) IssuanceResult {
	ctx, span := tracer.Start(ctx, "RecoveryEngine.RequestPasswordReset")
	defer span.End()
	defer e.sweepDetached()

	issues := issue.NewCollector()
	if !checkRequired(issues, "emailOrUsername", identifier, issue.CodeMissingUsername) {
		return IssuanceResult{Issues: issues}
	}

	user, err := e.auth.ResolveUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("emailOrUsername", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, e.logger, issues, "resolve user", err)
		}
		return IssuanceResult{Issues: issues}
	}
	if user.Email == "" {
		issues.AddError("email", issue.CodeMissingEmail, nil)
		return IssuanceResult{Issues: issues}
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	return e.issueCode(ctx, issues, user, domain.CodeKindPasswordReset, e.cfg.Recovery.PasswordReset, sendEmail)
}

// ResetPassword redeems a password reset code and sets the new password. A code can be redeemed once.
func (e *RecoveryEngine) ResetPassword(ctx context.Context, in ResetPasswordInput) *issue.Collector {
	ctx, span := tracer.Start(ctx, "RecoveryEngine.ResetPassword")
	defer span.End()

	issues := issue.NewCollector()
	checkRequired(issues, "token", in.Code, issue.CodeMissingToken)
	if strings.TrimSpace(in.Hash) == "" && strings.TrimSpace(in.Token) == "" {
		issues.AddError("hash", issue.CodeMissingHash, nil)
	}
	e.auth.CheckNewPassword(issues, "newPassword", in.NewPassword, in.NewPasswordConfirm)
	if issues.HasErrors() {
		return issues
	}

	kind := domain.CodeKindPasswordReset
	code, ok := e.lookup(ctx, issues, ConsumeQuery{Code: in.Code, LinkTokenHash: in.Hash, LinkToken: in.Token}, kind)
	if !ok {
		return issues
	}

	user, err := e.users.FindByID(ctx, code.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("token", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, e.logger, issues, "load user", err)
		}
		return issues
	}

	// Hash first so a hashing failure leaves the code redeemable; claim before saving
	// so two concurrent resets cannot both set a password.
	digest, err := e.auth.HashPassword(in.NewPassword)
	if err != nil {
		fail(ctx, e.logger, issues, "reset password", err)
		return issues
	}
	if !e.claim(ctx, issues, code) {
		return issues
	}
	if err := e.auth.SavePassword(ctx, user, digest, passwordResetReason); err != nil {
		fail(ctx, e.logger, issues, "reset password", err)
	}
	return issues
}

// RequestEmailVerification hands out an email verification code.
func (e *RecoveryEngine) RequestEmailVerification(ctx context.Context, target VerificationTarget, sendEmail bool) IssuanceResult {
	ctx, span := tracer.Start(ctx, "RecoveryEngine.RequestEmailVerification")
	defer span.End()
	defer e.sweepDetached()

	issues := issue.NewCollector()
	userID := strings.TrimSpace(target.UserID)
	email := strings.ToLower(strings.TrimSpace(target.Email))
	if userID == "" && email == "" {
		issues.AddError("userId", issue.CodeMissingUserID, nil)
		return IssuanceResult{Issues: issues}
	}

	var (
		user *domain.User
		err  error
	)
	if userID != "" {
		user, err = e.users.FindByID(ctx, userID)
	} else {
		user, err = e.users.FindByIdentity(ctx, domain.IdentityQuery{
			Email:           email,
			NormalizedEmail: e.auth.NormalizeEmail(email),
		})
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("userId", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, e.logger, issues, "load user", err)
		}
		return IssuanceResult{Issues: issues}
	}

	switch {
	case user.Verified:
		issues.AddError("userId", issue.CodeUserAlreadyVerified, nil)
	case !user.HasPassword():
		issues.AddError("userId", issue.CodeVerificationNotRequired, nil)
	case user.Email == "":
		issues.AddError("email", issue.CodeMissingEmail, nil)
	}
	if issues.HasErrors() {
		return IssuanceResult{Issues: issues}
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	return e.issueCode(ctx, issues, user, domain.CodeKindEmailVerification, e.cfg.Recovery.EmailVerification, sendEmail)
}

// ResendVerification emails a verification code to the account registered with email.
func (e *RecoveryEngine) ResendVerification(ctx context.Context, email string) IssuanceResult {
	if strings.TrimSpace(email) == "" {
		issues := issue.NewCollector()
		issues.AddError("email", issue.CodeMissingEmail, nil)
		return IssuanceResult{Issues: issues}
	}
	return e.RequestEmailVerification(ctx, VerificationTarget{Email: email}, true)
}

// VerifyAccount redeems an email verification link token and marks the user verified.
func (e *RecoveryEngine) VerifyAccount(ctx context.Context, token string) *issue.Collector {
	ctx, span := tracer.Start(ctx, "RecoveryEngine.VerifyAccount")
	defer span.End()

	issues := issue.NewCollector()
	if !checkRequired(issues, "token", token, issue.CodeMissingToken) {
		return issues
	}

	kind := domain.CodeKindEmailVerification
	code, ok := e.lookup(ctx, issues, ConsumeQuery{LinkToken: token}, kind)
	if !ok {
		return issues
	}

	user, err := e.users.FindByID(ctx, code.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("token", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, e.logger, issues, "load user", err)
		}
		return issues
	}

	if !e.claim(ctx, issues, code) {
		return issues
	}

	now := e.now().UTC()
	if !user.MarkVerified(now) {
		issues.AddInfo("userId", issue.CodeUserAlreadyVerified, nil)
		return issues
	}
	if err := e.users.Save(ctx, *user); err != nil {
		fail(ctx, e.logger, issues, "save verified user", err)
		return issues
	}

	if e.events != nil {
		err := e.events.PublishUserVerified(ctx, domain.UserVerifiedEvent{
			EventID:    uuid.NewString(),
			UserID:     user.ID,
			VerifiedAt: now,
		})
		if err != nil {
			logger.Enrich(e.logger, ctx).Warn("publish user verified event", zap.Error(err))
		}
	}
	return issues
}

// SweepExpired deletes expired codes and issuance records that fell out of every request window.
func (e *RecoveryEngine) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "RecoveryEngine.SweepExpired")
	defer span.End()

	n, err := e.ledger.SweepExpired(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	e.metrics.CodesSwept(n)
	if n > 0 {
		e.logger.Debug("expired verification codes swept", zap.Int("deleted", n))
	}

	if retain := max(e.cfg.Recovery.PasswordReset.Window, e.cfg.Recovery.EmailVerification.Window); retain > 0 {
		pruned, err := e.ledger.PruneIssuances(ctx, retain)
		if err != nil {
			span.RecordError(err)
			return n, err
		}
		if pruned > 0 {
			e.logger.Debug("stale code issuances pruned", zap.Int("deleted", pruned))
		}
	}
	return n, nil
}

func (e *RecoveryEngine) issueCode(ctx context.Context, issues *issue.Collector, user *domain.User, kind domain.CodeKind, policy config.CodePolicy, sendEmail bool) IssuanceResult {
	now := e.now()

	// Count then write: concurrent requests can slip one code past the limit.
	count, err := e.ledger.CountSince(ctx, user.ID, kind, now.Add(-policy.Window))
	if err != nil {
		fail(ctx, e.logger, issues, "count codes", err)
		return IssuanceResult{Issues: issues}
	}
	if count >= policy.MaxRequests {
		e.metrics.RateLimitHit(string(kind))
		issues.AddError("", issue.CodeTooMany, map[string]any{
			"retryAfterSeconds": int64(policy.Window / time.Second),
			"maxRequests":       policy.MaxRequests,
		})
		return IssuanceResult{Issues: issues}
	}

	code, err := e.ledger.FindActive(ctx, user.ID, kind)
	if err != nil {
		fail(ctx, e.logger, issues, "find active code", err)
		return IssuanceResult{Issues: issues}
	}
	reused := code != nil
	if reused {
		if err := e.ledger.Reuse(ctx, code); err != nil {
			if !errors.Is(err, ErrCodeNotFound) {
				fail(ctx, e.logger, issues, "reuse code", err)
				return IssuanceResult{Issues: issues}
			}
			reused = false
		}
	}
	if !reused {
		code, err = e.ledger.Create(ctx, user.ID, kind, policy.Expiration)
		if err != nil {
			fail(ctx, e.logger, issues, "create code", err)
			return IssuanceResult{Issues: issues}
		}
	}
	e.metrics.CodeIssued(string(kind), reused)

	result := IssuanceResult{
		Code:            code.Code,
		LinkToken:       code.LinkToken,
		LinkTokenHash:   code.LinkTokenHash,
		UserID:          user.ID,
		ExpiresAt:       code.ExpiresAt,
		ExpireInSeconds: code.ExpireInSeconds(now),
		Reused:          reused,
		Issues:          issues,
	}

	if sendEmail {
		if err := e.deliver(ctx, user, code, now); err != nil {
			logger.Enrich(e.logger, ctx).Error("deliver verification code",
				zap.String("user_id", user.ID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			issues.AddError("email", issue.CodeMailDeliveryFailed, nil)
			return result
		}
	}

	if e.events != nil {
		err := e.events.PublishVerificationCodeIssued(ctx, domain.VerificationCodeIssuedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			CodeID:      code.ID,
			Kind:        kind,
			Reused:      reused,
			Destination: logger.MaskEmail(user.Email),
			IssuedAt:    now.UTC(),
			ExpiresAt:   code.ExpiresAt,
		})
		if err != nil {
			logger.Enrich(e.logger, ctx).Warn("publish code issued event", zap.Error(err))
		}
	}
	return result
}

func (e *RecoveryEngine) deliver(ctx context.Context, user *domain.User, code *domain.VerificationCode, now time.Time) error {
	if e.mailer == nil {
		return errors.New("mail dispatcher is not configured")
	}

	content := mail.CodeMail{
		To:        user.Email,
		Username:  user.Username,
		Code:      code.Code,
		ExpiresIn: code.ExpiresAt.Sub(now),
	}

	var (
		msg domain.MailMessage
		err error
	)
	switch code.Kind {
	case domain.CodeKindPasswordReset:
		if code.LinkToken != "" {
			content.Link = mail.BuildLink(e.cfg.Mail.LinkBaseURL, resetLinkPath, map[string]string{"code": code.Code, "token": code.LinkToken})
		}
		msg, err = mail.PasswordResetMessage(content)
	default:
		if code.LinkToken != "" {
			content.Link = mail.BuildLink(e.cfg.Mail.LinkBaseURL, verifyLinkPath, map[string]string{"token": code.LinkToken})
		}
		msg, err = mail.VerificationMessage(content)
	}
	if err != nil {
		return err
	}
	return e.mailer.Send(ctx, msg)
}

func (e *RecoveryEngine) lookup(ctx context.Context, issues *issue.Collector, q ConsumeQuery, kind domain.CodeKind) (*domain.VerificationCode, bool) {
	code, err := e.ledger.Lookup(ctx, q, kind)
	switch {
	case err == nil:
		return code, true
	case errors.Is(err, ErrCodeNotFound):
		e.metrics.CodeConsumed(string(kind), "not_found")
		issues.AddError("token", issue.CodeVerificationNotFound, nil)
	case errors.Is(err, ErrCodeExpired):
		e.metrics.CodeConsumed(string(kind), "expired")
		issues.AddError("token", issue.CodeVerificationExpired, nil)
	default:
		fail(ctx, e.logger, issues, "lookup code", err)
	}
	return nil, false
}

func (e *RecoveryEngine) claim(ctx context.Context, issues *issue.Collector, code *domain.VerificationCode) bool {
	err := e.ledger.Claim(ctx, code)
	switch {
	case err == nil:
		e.metrics.CodeConsumed(string(code.Kind), "verified")
		return true
	case errors.Is(err, ErrCodeNotFound):
		e.metrics.CodeConsumed(string(code.Kind), "not_found")
		issues.AddError("token", issue.CodeVerificationNotFound, nil)
	default:
		fail(ctx, e.logger, issues, "claim code", err)
	}
	return false
}

func (e *RecoveryEngine) sweepDetached() {
	e.detach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.sweepTimeout)
		defer cancel()
		if _, err := e.SweepExpired(ctx); err != nil {
			e.logger.Warn("opportunistic sweep failed", zap.Error(err))
		}
	})
}
