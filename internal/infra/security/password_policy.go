package security

import (
	"strings"

	"github.com/ulut0002/base-backend/internal/core/issue"
)

const defaultMinPasswordLength = 8

// PasswordPolicyConfig toggles the complexity rules.
type PasswordPolicyConfig struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	SpecialChars   string
	MinStrength    int
}

// PasswordPolicy reports complexity violations as issues.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy builds a policy from cfg. A non-positive MinLength uses the default.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	return &PasswordPolicy{cfg: cfg}
}

func (p *PasswordPolicy) validator(userInputs []string) *PasswordValidator {
	rules := []PasswordRule{MinLengthRule(p.cfg.MinLength)}
	if p.cfg.RequireUpper {
		rules = append(rules, RequireUppercaseRule())
	}
	if p.cfg.RequireLower {
		rules = append(rules, RequireLowercaseRule())
	}
	if p.cfg.RequireDigit {
		rules = append(rules, RequireDigitRule())
	}
	if p.cfg.RequireSpecial {
		rules = append(rules, RequireSpecialRule(p.cfg.SpecialChars))
	}
	if p.cfg.MinStrength > 0 {
		rules = append(rules, RequirePasswordStrengthRule(p.cfg.MinStrength, userInputs...))
	}
	return NewPasswordValidator(rules...)
}

// Check appends one error issue per violated rule to c under field.
// userInputs (username, email) penalise passwords that contain them.
func (p *PasswordPolicy) Check(c *issue.Collector, field, password string, userInputs ...string) {
	if p == nil || c == nil {
		return
	}

	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if trimmed := strings.TrimSpace(in); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}

	for _, v := range p.validator(inputs).Validate(password) {
		c.AddError(field, v.Code, v.Params)
	}
}
