package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/logger"
)

// LogDispatcher writes messages to the log instead of sending them.
type LogDispatcher struct {
	profiles Profiles
	logger   *zap.Logger
}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher(profiles Profiles, log *zap.Logger) *LogDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDispatcher{profiles: profiles, logger: log}
}

func (d *LogDispatcher) Send(ctx context.Context, msg domain.MailMessage) error {
	profile, err := d.profiles.Resolve(msg.Profile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}

	logger.Enrich(d.logger, ctx).Info("mail dispatched to log",
		zap.String("from", profile.Address),
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.Text)),
	)
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher delivers messages through an SMTP relay.
type SMTPDispatcher struct {
	cfg      config.SMTPSettings
	profiles Profiles
	send     sendMailFunc
}

// NewSMTPDispatcher constructs an SMTPDispatcher.
func NewSMTPDispatcher(cfg config.SMTPSettings, profiles Profiles) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, profiles: profiles, send: smtp.SendMail}
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg domain.MailMessage) error {
	profile, err := d.profiles.Resolve(msg.Profile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}

	body, err := buildMIME(profile, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if d.cfg.User != "" {
		auth = smtp.PlainAuth("", d.cfg.User, d.cfg.Password, d.cfg.Host)
	}
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))

	// net/smtp has no context support; the send goroutine finishes on its own after a cancel.
	done := make(chan error, 1)
	go func() {
		done <- d.send(addr, auth, profile.Address, []string{msg.To}, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func buildMIME(profile domain.MailProfile, msg domain.MailMessage) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []string{
		"From: " + fromHeader(profile),
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
	}
	buf.WriteString(strings.Join(header, "\r\n"))
	buf.WriteString("\r\n\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("write mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}
	return buf.Bytes(), nil
}
