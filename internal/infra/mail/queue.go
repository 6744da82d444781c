package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/infra/config"
)

const defaultQueue = "mail.outbound"

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Job is the JSON body published for every queued message.
type Job struct {
	From     domain.MailProfile `json:"from"`
	To       string             `json:"to"`
	Subject  string             `json:"subject"`
	Text     string             `json:"text,omitempty"`
	HTML     string             `json:"html,omitempty"`
	QueuedAt time.Time          `json:"queued_at"`
}

// QueueDispatcher hands rendered messages to a mail worker through a durable RabbitMQ queue.
type QueueDispatcher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	queue    string
	profiles Profiles
	logger   *zap.Logger
	now      func() time.Time
}

// DialQueue connects to the broker and declares the outbound queue.
func DialQueue(cfg config.AMQPSettings, profiles Profiles, log *zap.Logger) (*QueueDispatcher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("mail: amqp url is empty")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = defaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	d := newQueueDispatcher(ch, queue, profiles, log)
	d.conn = conn
	return d, nil
}

func newQueueDispatcher(ch amqpChannel, queue string, profiles Profiles, log *zap.Logger) *QueueDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueDispatcher{
		channel:  ch,
		queue:    queue,
		profiles: profiles,
		logger:   log,
		now:      time.Now,
	}
}

func (d *QueueDispatcher) Send(ctx context.Context, msg domain.MailMessage) error {
	profile, err := d.profiles.Resolve(msg.Profile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}

	now := d.now().UTC()
	body, err := json.Marshal(Job{
		From:     profile,
		To:       msg.To,
		Subject:  msg.Subject,
		Text:     msg.Text,
		HTML:     msg.HTML,
		QueuedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}

	err = d.channel.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (d *QueueDispatcher) Close() error {
	if d.channel != nil {
		if err := d.channel.Close(); err != nil {
			d.logger.Warn("close amqp channel", zap.Error(err))
		}
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
