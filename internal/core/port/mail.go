package port

import (
	"context"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// MailDispatcher delivers rendered messages through the configured transport.
type MailDispatcher interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}
