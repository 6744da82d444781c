package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/infra/logger"
	"github.com/ulut0002/base-backend/internal/infra/security"
)

const (
	defaultUsernameMin = 3
	defaultUsernameMax = 50
)

func checkUsername(c *issue.Collector, field, username string, required bool, minLen, maxLen int) {
	if minLen <= 0 {
		minLen = defaultUsernameMin
	}
	if maxLen <= 0 {
		maxLen = defaultUsernameMax
	}

	if username == "" {
		if required {
			c.AddError(field, issue.CodeMissingUsername, nil)
		}
		return
	}

	n := utf8.RuneCountInString(username)
	switch {
	case n < minLen:
		c.AddError(field, issue.CodeUsernameTooShort, map[string]any{"min": minLen, "actual": n})
	case n > maxLen:
		c.AddError(field, issue.CodeUsernameTooLong, map[string]any{"max": maxLen, "actual": n})
	}
}

func checkEmail(c *issue.Collector, field, email string) {
	if email == "" {
		c.AddError(field, issue.CodeMissingEmail, nil)
		return
	}
	if !security.ValidEmail(email) {
		c.AddError(field, issue.CodeInvalidEmail, nil)
	}
}

func checkRequired(c *issue.Collector, field, value string, code issue.Code) bool {
	if strings.TrimSpace(value) == "" {
		c.AddError(field, code, nil)
		return false
	}
	return true
}

// checkConfirmation validates an optional confirmation. A nil confirm means the caller did not send one.
func checkConfirmation(c *issue.Collector, field, password string, confirm *string) {
	if confirm == nil {
		return
	}
	if *confirm == "" {
		c.AddError(field, issue.CodeMissingPasswordConfirmation, nil)
		return
	}
	if *confirm != password {
		c.AddError(field, issue.CodePasswordNotMatching, nil)
	}
}

// fail records an infrastructure failure: the cause goes to the log and the span,
// the caller only sees API_ERROR.
func fail(ctx context.Context, log *zap.Logger, c *issue.Collector, op string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)

	logger.Enrich(log, ctx).Error(op+" failed", zap.Error(err))
	c.AddError("", issue.CodeAPIError, map[string]any{"category": string(issue.CategoryInfrastructure)})
}
