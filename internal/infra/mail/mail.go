package mail

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/port"
	"github.com/ulut0002/base-backend/internal/infra/config"
)

// Supported values of mail.transport.
const (
	TransportLog  = "log"
	TransportSMTP = "smtp"
	TransportAMQP = "amqp"
)

// New builds the dispatcher selected by cfg.Transport wrapped in retries.
// The returned close function is never nil.
func New(cfg config.MailSettings, log *zap.Logger) (port.MailDispatcher, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	profiles := Profiles(cfg.Profiles)
	noop := func() error { return nil }

	var (
		base    port.MailDispatcher
		closeFn = noop
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportLog:
		// Nothing leaves the process, so retries would only repeat log lines.
		return NewLogDispatcher(profiles, log), noop, nil
	case TransportSMTP:
		if cfg.SMTP.Host == "" {
			return nil, noop, fmt.Errorf("mail: smtp host is empty")
		}
		base = NewSMTPDispatcher(cfg.SMTP, profiles)
	case TransportAMQP:
		queue, err := DialQueue(cfg.AMQP, profiles, log)
		if err != nil {
			return nil, noop, err
		}
		base = queue
		closeFn = queue.Close
	default:
		return nil, noop, fmt.Errorf("mail: unknown transport %q", cfg.Transport)
	}

	log.Info("mail dispatcher configured", zap.String("transport", cfg.Transport))
	return NewRetryingDispatcher(base, cfg.Retries, cfg.Timeout, log), closeFn, nil
}
