package port

import (
	"context"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishVerificationCodeIssued(ctx context.Context, event domain.VerificationCodeIssuedEvent) error
	PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error
}
