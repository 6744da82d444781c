package postgres

import "time"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users             *UserRepository
	VerificationCodes *VerificationCodeRepository
}

// NewRepositories wires all repositories backed by the provided executor.
// timeout bounds each statement.
func NewRepositories(exec pgExecutor, timeout time.Duration) *Repositories {
	return &Repositories{
		Users:             NewUserRepository(exec, timeout),
		VerificationCodes: NewVerificationCodeRepository(exec, timeout),
	}
}
