// Package service publishes catalog domain events to RabbitMQ.  Publish
// errors are returned so callers can log them; they never undo the change
// that produced the event.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/library-catalog/internal/config"
	"github.com/iliyamo/library-catalog/internal/queue"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher delivers loan events.
type Publisher interface {
	PublishLoanEvent(ctx context.Context, ev queue.LoanEvent) error
}

// NopPublisher drops every event.  It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishLoanEvent(context.Context, queue.LoanEvent) error { return nil }

// dialer opens a channel-capable broker connection.
type dialer func(url string) (amqpConn, error)

type amqpConn interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connAdapter struct{ *amqp.Connection }

func (c connAdapter) Channel() (amqpChannel, error) { return c.Connection.Channel() }

func dialAMQP(url string) (amqpConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return connAdapter{conn}, nil
}

// AMQPPublisher publishes each event as a persistent JSON message to a
// durable queue through the default exchange.  It dials per publish; loan
// traffic is low and this keeps no connection state to repair.
type AMQPPublisher struct {
	url   string
	queue string
	log   *slog.Logger
	dial  dialer
}

// NewPublisher returns an AMQPPublisher when events are enabled and a
// NopPublisher otherwise.
func NewPublisher(cfg config.EventsConfig, logger *slog.Logger) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{url: cfg.URL, queue: cfg.Queue, log: logger, dial: dialAMQP}
}

// PublishLoanEvent sends ev to the configured queue.
func (p *AMQPPublisher) PublishLoanEvent(ctx context.Context, ev queue.LoanEvent) error {
	conn, err := p.dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", "error", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", "queue", p.queue, "error", err)
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", "queue", p.queue, "error", err)
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	p.log.Debug("rabbitmq: published", "queue", p.queue, "type", ev.Type, "book_id", ev.BookID)
	return nil
}
