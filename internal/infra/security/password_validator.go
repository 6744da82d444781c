package security

import (
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/ulut0002/base-backend/internal/core/issue"
)

// PasswordViolation represents a single password policy violation.
type PasswordViolation struct {
	Code   issue.Code
	Params map[string]any
}

// Error implements error for PasswordViolation.
func (v *PasswordViolation) Error() string {
	if v == nil {
		return ""
	}
	return v.Code.DefaultMessage()
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) *PasswordViolation
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) *PasswordViolation

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) *PasswordViolation {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns every violation in rule order.
func (v *PasswordValidator) Validate(password string) []PasswordViolation {
	if v == nil {
		return nil
	}
	var violations []PasswordViolation
	for _, rule := range v.rules {
		if violation := rule.Validate(password); violation != nil {
			violations = append(violations, *violation)
		}
	}
	return violations
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) *PasswordViolation {
		if len([]rune(password)) < min {
			return &PasswordViolation{
				Code:   issue.CodePasswordTooShort,
				Params: map[string]any{"min": min},
			}
		}
		return nil
	})
}

func requireRune(code issue.Code, match func(rune) bool) PasswordRule {
	return PasswordRuleFunc(func(password string) *PasswordViolation {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordViolation{Code: code}
	})
}

// RequireUppercaseRule ensures the password contains an uppercase letter.
func RequireUppercaseRule() PasswordRule {
	return requireRune(issue.CodePasswordMissingUppercase, unicode.IsUpper)
}

// RequireLowercaseRule ensures the password contains a lowercase letter.
func RequireLowercaseRule() PasswordRule {
	return requireRune(issue.CodePasswordMissingLowercase, unicode.IsLower)
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return requireRune(issue.CodePasswordMissingDigit, unicode.IsDigit)
}

// RequireSpecialRule ensures the password contains one of allowed. An empty set
// accepts any unicode symbol or punctuation.
func RequireSpecialRule(allowed string) PasswordRule {
	rule := requireRune(issue.CodePasswordMissingSpecial, func(r rune) bool {
		if allowed == "" {
			return unicode.IsSymbol(r) || unicode.IsPunct(r)
		}
		return strings.ContainsRune(allowed, r)
	})
	return PasswordRuleFunc(func(password string) *PasswordViolation {
		violation := rule.Validate(password)
		if violation != nil && allowed != "" {
			violation.Params = map[string]any{"allowed": allowed}
		}
		return violation
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject weak passwords.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) *PasswordViolation {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordViolation{
			Code:   issue.CodePasswordTooWeak,
			Params: map[string]any{"score": result.Score, "min": minScore},
		}
	})
}
