package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/logger"
	"github.com/ulut0002/base-backend/internal/infra/security"
	"github.com/ulut0002/base-backend/internal/repository"
)

const (
	passwordChangeReason = "change"
	passwordResetReason  = "reset"
)

var tracer = otel.Tracer("github.com/ulut0002/base-backend/internal/usecase")

// AuthService registers accounts, authenticates logins and rotates passwords.
// Expected failures are reported as issues; only Succeeded results carry a token.
type AuthService struct {
	cfg      *config.AppConfig
	users    port.CredentialStore
	hasher   port.PasswordHasher
	sessions port.SessionIssuer
	policy   *security.PasswordPolicy
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// RegisterInput carries the registration form. A nil PasswordConfirm means no confirmation was sent.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm *string
}

// LoginInput carries login credentials. Identity is a username or an email address.
type LoginInput struct {
	Identity string
	Password string
}

// ChangePasswordInput carries an authenticated password change.
type ChangePasswordInput struct {
	UserID             string
	CurrentPassword    string
	NewPassword        string
	NewPasswordConfirm *string
}

// SessionResult is returned by operations that sign the user in.
type SessionResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
	Issues    *issue.Collector
}

// Succeeded reports whether the operation produced a usable session.
func (r SessionResult) Succeeded() bool {
	return r.Token != "" && !r.Issues.HasErrors()
}

// UserResult is returned by operations that load a user.
type UserResult struct {
	User   *domain.User
	Issues *issue.Collector
}

// NewAuthService constructs an AuthService. sessions may be nil when no signing
// secret is configured; every operation then fails on the configuration check.
func NewAuthService(cfg *config.AppConfig, users port.CredentialStore, hasher port.PasswordHasher, sessions port.SessionIssuer, events port.EventPublisher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	return &AuthService{
		cfg:      cfg,
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		policy:   newPasswordPolicy(cfg.Auth.Password),
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

func newPasswordPolicy(p config.PasswordSettings) *security.PasswordPolicy {
	return security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:      p.MinLength,
		RequireUpper:   p.RequireUpper,
		RequireLower:   p.RequireLower,
		RequireDigit:   p.RequireDigit,
		RequireSpecial: p.RequireSpecial,
		SpecialChars:   p.SpecialChars,
		MinStrength:    p.MinStrength,
	})
}

// WithClock overrides the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) SessionResult {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	issues := s.configIssues()

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	checkUsername(issues, "username", username, s.cfg.Auth.UsernameRequired, s.cfg.Auth.UsernameMin, s.cfg.Auth.UsernameMax)
	checkEmail(issues, "email", email)
	if checkRequired(issues, "password", in.Password, issue.CodeMissingPassword) {
		checkConfirmation(issues, "passwordConfirm", in.Password, in.PasswordConfirm)
		s.policy.Check(issues, "password", in.Password, username, email)
	}
	if issues.HasErrors() {
		return SessionResult{Issues: issues}
	}

	normalized := s.NormalizeEmail(email)

	_, err := s.users.FindByIdentity(ctx, domain.IdentityQuery{
		Username:        username,
		Email:           email,
		NormalizedEmail: normalized,
	})
	switch {
	case err == nil:
		issues.AddError("username", issue.CodeExistingUser, nil)
		return SessionResult{Issues: issues}
	case !errors.Is(err, repository.ErrNotFound):
		fail(ctx, s.logger, issues, "lookup existing user", err)
		return SessionResult{Issues: issues}
	}

	if username == "" {
		username = email
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		fail(ctx, s.logger, issues, "hash password", err)
		return SessionResult{Issues: issues}
	}

	user, err := s.users.Create(ctx, domain.NewUser{
		Username:        username,
		Email:           email,
		NormalizedEmail: normalized,
		PasswordHash:    digest,
		Role:            domain.RoleUser,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			issues.AddError("username", issue.CodeExistingUser, nil)
		} else {
			fail(ctx, s.logger, issues, "create user", err)
		}
		return SessionResult{Issues: issues}
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	result := s.signIn(ctx, issues, *user, s.cfg.Session.TTL)
	if !result.Succeeded() {
		return result
	}

	s.publish(ctx, "user registered", func(ctx context.Context) error {
		return s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Username:     user.Username,
			Email:        user.Email,
			Role:         user.Role,
			RegisteredAt: user.CreatedAt,
		})
	})

	logger.Enrich(s.logger, ctx).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)
	return result
}

// Login authenticates by username or email and signs the user in.
func (s *AuthService) Login(ctx context.Context, in LoginInput) SessionResult {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	issues := s.configIssues()
	identity := strings.TrimSpace(in.Identity)
	checkRequired(issues, "usernameOrEmail", identity, issue.CodeMissingUsername)
	checkRequired(issues, "password", in.Password, issue.CodeMissingPassword)
	if issues.HasErrors() {
		return SessionResult{Issues: issues}
	}

	user, err := s.ResolveUser(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("usernameOrEmail", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, s.logger, issues, "resolve user", err)
		}
		return SessionResult{Issues: issues}
	}
	if !user.HasPassword() {
		issues.AddError("password", issue.CodeUserMissingPassword, nil)
		return SessionResult{Issues: issues}
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		fail(ctx, s.logger, issues, "verify password", err)
		return SessionResult{Issues: issues}
	}
	if !ok {
		logger.Enrich(s.logger, ctx).Info("login rejected", zap.String("user_id", user.ID))
		issues.AddError("password", issue.CodeInvalidCredentials, nil)
		return SessionResult{Issues: issues}
	}

	now := s.now().UTC()
	user.LastLogin = &now
	if err := s.users.Save(ctx, *user); err != nil {
		logger.Enrich(s.logger, ctx).Warn("stamp last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.signIn(ctx, issues, *user, s.cfg.Session.TTL)
}

// ChangePassword replaces the password of an authenticated user after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) *issue.Collector {
	ctx, span := tracer.Start(ctx, "AuthService.ChangePassword")
	defer span.End()

	issues := issue.NewCollector()
	checkRequired(issues, "userId", in.UserID, issue.CodeMissingUserID)
	checkRequired(issues, "currentPassword", in.CurrentPassword, issue.CodeMissingPassword)
	if checkRequired(issues, "newPassword", in.NewPassword, issue.CodeMissingPassword) {
		checkConfirmation(issues, "newPasswordConfirm", in.NewPassword, in.NewPasswordConfirm)
	}
	if issues.HasErrors() {
		return issues
	}
	s.policy.Check(issues, "newPassword", in.NewPassword)
	if issues.HasErrors() {
		return issues
	}

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("userId", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, s.logger, issues, "load user", err)
		}
		return issues
	}
	if !user.HasPassword() {
		issues.AddError("userId", issue.CodeUserNotFound, nil)
		return issues
	}

	ok, err := s.hasher.Verify(in.CurrentPassword, user.PasswordHash)
	if err != nil {
		fail(ctx, s.logger, issues, "verify password", err)
		return issues
	}
	if !ok {
		issues.AddError("currentPassword", issue.CodeInvalidCredentials, nil)
		return issues
	}

	if err := s.SetPassword(ctx, user, in.NewPassword, passwordChangeReason); err != nil {
		fail(ctx, s.logger, issues, "change password", err)
	}
	return issues
}

// Refresh reissues a session for the holder of a valid token.
func (s *AuthService) Refresh(ctx context.Context, token string) SessionResult {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	issues := s.configIssues()
	if issues.HasErrors() {
		return SessionResult{Issues: issues}
	}

	payload, err := s.VerifySession(token)
	if err != nil {
		issues.AddError("token", issue.CodeInvalidSession, nil)
		return SessionResult{Issues: issues}
	}

	user, err := s.users.FindByID(ctx, payload.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("token", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, s.logger, issues, "load user", err)
		}
		return SessionResult{Issues: issues}
	}

	ttl := s.cfg.Session.RefreshTTL
	if ttl <= 0 {
		ttl = s.cfg.Session.TTL
	}
	return s.signIn(ctx, issues, *user, ttl)
}

// CurrentUser loads the signed-in user without its password hash.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) UserResult {
	ctx, span := tracer.Start(ctx, "AuthService.CurrentUser")
	defer span.End()

	issues := issue.NewCollector()
	if !checkRequired(issues, "userId", userID, issue.CodeMissingUserID) {
		return UserResult{Issues: issues}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			issues.AddError("userId", issue.CodeUserNotFound, nil)
		} else {
			fail(ctx, s.logger, issues, "load user", err)
		}
		return UserResult{Issues: issues}
	}

	sanitized := user.Sanitized()
	return UserResult{User: &sanitized, Issues: issues}
}

// VerifySession checks a session token.
func (s *AuthService) VerifySession(token string) (domain.SessionPayload, error) {
	if s.sessions == nil {
		return domain.SessionPayload{}, security.ErrSecretMissing
	}
	return s.sessions.Verify(strings.TrimSpace(token))
}

// ResolveUser finds a user by raw username or email, then by normalized email.
func (s *AuthService) ResolveUser(ctx context.Context, identity string) (*domain.User, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, repository.ErrNotFound
	}

	user, err := s.users.FindByIdentity(ctx, domain.IdentityQuery{UsernameOrEmail: identity})
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return user, err
	}

	normalized := s.NormalizeEmail(identity)
	if !strings.Contains(normalized, "@") {
		return nil, repository.ErrNotFound
	}
	return s.users.FindByIdentity(ctx, domain.IdentityQuery{NormalizedEmail: normalized})
}

// NormalizeEmail canonicalizes email for duplicate detection when enabled.
func (s *AuthService) NormalizeEmail(email string) string {
	if !s.cfg.Auth.NormalizeEmails {
		return strings.ToLower(strings.TrimSpace(email))
	}
	return security.NormalizeEmail(email)
}

// CheckNewPassword applies presence, confirmation and policy checks to a new password.
func (s *AuthService) CheckNewPassword(c *issue.Collector, field, password string, confirm *string, userInputs ...string) {
	if !checkRequired(c, field, password, issue.CodeMissingPassword) {
		return
	}
	checkConfirmation(c, field+"Confirm", password, confirm)
	s.policy.Check(c, field, password, userInputs...)
}

// SetPassword hashes password, saves it on user and publishes the change.
func (s *AuthService) SetPassword(ctx context.Context, user *domain.User, password, reason string) error {
	digest, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	return s.SavePassword(ctx, user, digest, reason)
}

// HashPassword derives the stored digest for password.
func (s *AuthService) HashPassword(password string) (string, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

// SavePassword stores an already hashed password on user and publishes the change.
func (s *AuthService) SavePassword(ctx context.Context, user *domain.User, digest, reason string) error {
	user.PasswordHash = digest
	if err := s.users.Save(ctx, *user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	changedAt := s.now().UTC()
	s.publish(ctx, "password changed", func(ctx context.Context) error {
		return s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			ChangedAt: changedAt,
			Reason:    reason,
		})
	})

	logger.Enrich(s.logger, ctx).Info("password changed",
		zap.String("user_id", user.ID),
		zap.String("reason", reason),
	)
	return nil
}

func (s *AuthService) configIssues() *issue.Collector {
	return s.cfg.Auth.Validate(s.cfg.Session)
}

func (s *AuthService) signIn(ctx context.Context, issues *issue.Collector, user domain.User, ttl time.Duration) SessionResult {
	if s.sessions == nil {
		issues.AddError("securityKey", issue.CodeMissingSecurityKey, nil)
		return SessionResult{Issues: issues}
	}

	token, expiresAt, err := s.sessions.Issue(domain.PayloadFor(user), ttl)
	if err != nil {
		fail(ctx, s.logger, issues, "issue session", err)
		return SessionResult{Issues: issues}
	}

	sanitized := user.Sanitized()
	return SessionResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      &sanitized,
		Issues:    issues,
	}
}

func (s *AuthService) publish(ctx context.Context, what string, send func(context.Context) error) {
	if s.events == nil {
		return
	}
	if err := send(ctx); err != nil {
		logger.Enrich(s.logger, ctx).Warn("publish "+what+" event", zap.Error(err))
	}
}
