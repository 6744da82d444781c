package mail

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/logger"
)

const (
	defaultTimeout = 10 * time.Second
	retryBase      = 200 * time.Millisecond
)

// RetryingDispatcher bounds each send with a timeout and retries transient failures
// with exponential backoff. Profile and recipient errors are not retried.
type RetryingDispatcher struct {
	next    port.MailDispatcher
	retries uint64
	timeout time.Duration
	base    time.Duration
	logger  *zap.Logger
}

// NewRetryingDispatcher wraps next.
func NewRetryingDispatcher(next port.MailDispatcher, retries uint64, timeout time.Duration, log *zap.Logger) *RetryingDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RetryingDispatcher{
		next:    next,
		retries: retries,
		timeout: timeout,
		base:    retryBase,
		logger:  log,
	}
}

func (d *RetryingDispatcher) Send(ctx context.Context, msg domain.MailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	attempt := 0
	backoff := retry.WithMaxRetries(d.retries, retry.NewExponential(d.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := d.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnknownProfile) || errors.Is(err, ErrNoRecipient) {
			return err
		}
		logger.Enrich(d.logger, ctx).Warn("mail send failed",
			zap.Int("attempt", attempt),
			zap.String("to", logger.MaskEmail(msg.To)),
			zap.Error(err),
		)
		return retry.RetryableError(err)
	})
}
