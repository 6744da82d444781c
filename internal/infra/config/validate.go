package config

import (
	"strings"

	"github.com/ulut0002/base-backend/internal/core/issue"
)

// MinSecretLength is the shortest JWT secret accepted without a warning.
const MinSecretLength = 16

// Validate reports operator-fixable problems. Errors block authentication;
// warnings ride along with successful responses.
func (c AuthSettings) Validate(session SessionSettings) *issue.Collector {
	issues := issue.NewCollector()

	secret := strings.TrimSpace(c.JWTSecret)
	switch {
	case secret == "":
		issues.AddError("securityKey", issue.CodeMissingSecurityKey, nil)
	case len(secret) < MinSecretLength:
		issues.AddWarning("securityKey", issue.CodeSecurityKeyTooShort, map[string]any{"min": MinSecretLength})
	}

	if session.TTL <= 0 {
		issues.AddError("cookieExpiration", issue.CodeMissingCookieExpiration, nil)
	}

	return issues
}

// Validate checks the whole configuration at startup.
func (c *AppConfig) Validate() *issue.Collector {
	issues := c.Auth.Validate(c.Session)

	if c.Recovery.CodeLength <= 0 {
		issues.AddError("recovery.code_length", issue.CodeInvalidConfiguration, nil)
	}
	if c.Recovery.MaxAttempts <= 0 {
		issues.AddError("recovery.max_attempts", issue.CodeInvalidConfiguration, nil)
	}
	for name, policy := range map[string]CodePolicy{
		"recovery.password_reset":     c.Recovery.PasswordReset,
		"recovery.email_verification": c.Recovery.EmailVerification,
	} {
		if policy.Window <= 0 || policy.MaxRequests <= 0 || policy.Expiration <= 0 {
			issues.AddError(name, issue.CodeInvalidConfiguration, nil)
		}
	}
	if c.Auth.UsernameMin > c.Auth.UsernameMax && c.Auth.UsernameMax > 0 {
		issues.AddError("auth.username_min", issue.CodeInvalidConfiguration, nil)
	}

	return issues
}

// SecureCookie resolves the cookie Secure flag, defaulting to production mode.
func (c *AppConfig) SecureCookie() bool {
	if c.Session.SecureCookie != nil {
		return *c.Session.SecureCookie
	}
	return c.App.IsProduction()
}
