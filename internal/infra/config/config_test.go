package config

import (
	"testing"
	"time"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/issue"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Session.CookieName != "auth_token" || cfg.Session.TTL != time.Hour {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Recovery.CodeLength != 5 {
		t.Fatalf("unexpected code length %d", cfg.Recovery.CodeLength)
	}
	if cfg.Recovery.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts %d", cfg.Recovery.MaxAttempts)
	}
	reset := cfg.Recovery.PasswordReset
	if reset.Window != 15*time.Minute || reset.MaxRequests != 5 || reset.Expiration != 10*time.Minute {
		t.Fatalf("unexpected password reset policy: %+v", reset)
	}
	if cfg.Recovery.EmailVerification.Expiration != time.Hour {
		t.Fatalf("unexpected verification expiry %s", cfg.Recovery.EmailVerification.Expiration)
	}
	if cfg.Store.Timeout != 5*time.Second {
		t.Fatalf("unexpected store timeout %s", cfg.Store.Timeout)
	}
	if cfg.Auth.Hashing.BcryptCost != 10 || cfg.Auth.Hashing.Algorithm != "bcrypt" {
		t.Fatalf("unexpected hashing defaults: %+v", cfg.Auth.Hashing)
	}
	if _, ok := cfg.Mail.Profiles[domain.MailProfileNoReply]; !ok {
		t.Fatalf("expected no-reply profile, got %v", cfg.Mail.Profiles)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("CRED_AUTH_JWT_SECRET", "from-env-secret-value")
	t.Setenv("CRED_RECOVERY_PASSWORD_RESET_MAX_REQUESTS", "2")
	t.Setenv("CRED_SESSION_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env-secret-value" {
		t.Fatalf("secret not read from env: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Recovery.PasswordReset.MaxRequests != 2 {
		t.Fatalf("max requests not read from env: %d", cfg.Recovery.PasswordReset.MaxRequests)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("ttl not read from env: %s", cfg.Session.TTL)
	}
}

func TestAuthValidate(t *testing.T) {
	session := SessionSettings{TTL: time.Hour}

	missing := AuthSettings{}.Validate(session)
	if first, ok := missing.FirstError(); !ok || first.Code != issue.CodeMissingSecurityKey {
		t.Fatalf("expected missing key error, got %+v", missing.Issues())
	}
	if first, _ := missing.FirstError(); first.Category() != issue.CategoryConfiguration {
		t.Fatalf("expected configuration category, got %s", first.Category())
	}

	short := AuthSettings{JWTSecret: "short"}.Validate(session)
	if short.HasErrors() {
		t.Fatalf("short secret must not be an error: %+v", short.Issues())
	}
	if got := short.All().Warnings; len(got) != 1 || got[0].Code != issue.CodeSecurityKeyTooShort {
		t.Fatalf("expected short key warning, got %+v", got)
	}

	noTTL := AuthSettings{JWTSecret: "0123456789abcdef"}.Validate(SessionSettings{})
	if first, ok := noTTL.FirstError(); !ok || first.Code != issue.CodeMissingCookieExpiration {
		t.Fatalf("expected missing cookie expiration, got %+v", noTTL.Issues())
	}
}

func TestSecureCookieDefaultsToProduction(t *testing.T) {
	cfg := &AppConfig{App: AppSettings{Env: "production"}}
	if !cfg.SecureCookie() {
		t.Fatal("expected secure cookie in production")
	}

	off := false
	cfg.Session.SecureCookie = &off
	if cfg.SecureCookie() {
		t.Fatal("expected explicit override to win")
	}
}
