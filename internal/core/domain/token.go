package domain

import "time"

// CodeKind scopes a verification code to the flow that issued it.
type CodeKind string

const (
	CodeKindPasswordReset     CodeKind = "PASSWORD_RESET"
	CodeKindEmailVerification CodeKind = "EMAIL_VERIFICATION"
	CodeKindTwoFactor         CodeKind = "TWO_FACTOR"
	CodeKindInvite            CodeKind = "INVITE"
)

// CodeStatus tracks the lifecycle of a verification code.
type CodeStatus string

const (
	CodeStatusPending  CodeStatus = "PENDING"
	CodeStatusVerified CodeStatus = "VERIFIED"
	CodeStatusExpired  CodeStatus = "EXPIRED"
)

// VerificationCode is a single-use recovery artifact.
// LinkToken is only populated on the value returned at creation; it is never persisted.
type VerificationCode struct {
	ID            string
	UserID        string
	Code          string
	LinkToken     string `json:"-"`
	LinkTokenHash string
	Kind          CodeKind
	Status        CodeStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	VerifiedAt    *time.Time
	// IssueCount counts the requests that handed this code out, including reuses.
	IssueCount   int
	LastIssuedAt time.Time
	// FailedAttempts counts redemptions that matched the link token but not the digits.
	FailedAttempts int
}

// IsExpired reports whether the code has elapsed its validity window.
func (c VerificationCode) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// IsActive returns true when the code is pending and not yet expired.
func (c VerificationCode) IsActive(at time.Time) bool {
	return c.Status == CodeStatusPending && !c.IsExpired(at)
}

// Verify consumes the code. Only a pending code can be verified.
func (c *VerificationCode) Verify(at time.Time) bool {
	if c.Status != CodeStatusPending {
		return false
	}
	t := at
	c.Status = CodeStatusVerified
	c.VerifiedAt = &t
	return true
}

// Expire moves a pending code to the expired state.
func (c *VerificationCode) Expire() bool {
	if c.Status != CodeStatusPending {
		return false
	}
	c.Status = CodeStatusExpired
	return true
}

// ExpireInSeconds returns the remaining lifetime, floored at zero.
func (c VerificationCode) ExpireInSeconds(at time.Time) int64 {
	remaining := c.ExpiresAt.Sub(at)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}
