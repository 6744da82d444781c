package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. It is selected when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(ctx context.Context, eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}
	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	logger.Enrich(p.logger, ctx).Info("stub event published", append(base, fields...)...)
}

// PublishUserRegistered logs user.registered.
func (p *StubPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(ctx, EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
	)
	return nil
}

// PublishPasswordChanged logs user.password.changed.
func (p *StubPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(ctx, EventPasswordChanged, event.UserID, event.ChangedAt, zap.String("reason", event.Reason))
	return nil
}

// PublishVerificationCodeIssued logs verification.code.issued.
func (p *StubPublisher) PublishVerificationCodeIssued(ctx context.Context, event domain.VerificationCodeIssuedEvent) error {
	p.logEvent(ctx, EventVerificationCodeIssued, event.UserID, event.IssuedAt,
		zap.String("kind", string(event.Kind)),
		zap.Bool("reused", event.Reused),
		zap.String("destination", event.Destination),
	)
	return nil
}

// PublishUserVerified logs user.verified.
func (p *StubPublisher) PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error {
	p.logEvent(ctx, EventUserVerified, event.UserID, event.VerifiedAt)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
