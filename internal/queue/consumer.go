package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogFileName is the file the consumer appends to inside its log directory.
const LogFileName = "loans.log"

// Consumer reads loan events from a durable queue and appends one line per
// event to <LogDir>/loans.log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string
	Log    *slog.Logger
}

// Run connects to the broker and consumes until ctx is cancelled.  Dial
// failures and dropped connections are retried with backoff; Run only
// returns once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	logger := c.Log
	if logger == nil {
		logger = slog.Default()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warn("loan consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("loan consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("loan consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logger.Info("loan consumer: consuming", "queue", c.Queue, "log_dir", c.LogDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := AppendLoanLine(c.LogDir, d.Body); err != nil {
				logger.Error("loan consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // no requeue, a bad message would loop
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// AppendLoanLine decodes a LoanEvent from body and appends a single
// human-readable line for it to dir/loans.log.
func AppendLoanLine(dir string, body []byte) error {
	var ev LoanEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.BookID == 0 {
		return fmt.Errorf("incomplete event %q", ev.EventID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one log line, newline included.
func FormatLine(ev LoanEvent) string {
	switch ev.Type {
	case TypeBookLoaned:
		return fmt.Sprintf("[%s] Book loaned | event_id=%s | book_id=%d | title=%q | loanee=%q | loan_date=%q\n",
			ev.OccurredAt, ev.EventID, ev.BookID, ev.Title, ev.Loanee, ev.LoanDate)
	case TypeBookReturned:
		return fmt.Sprintf("[%s] Book returned | event_id=%s | book_id=%d | title=%q\n",
			ev.OccurredAt, ev.EventID, ev.BookID, ev.Title)
	default:
		return fmt.Sprintf("[%s] %s | event_id=%s | book_id=%d\n", ev.OccurredAt, ev.Type, ev.EventID, ev.BookID)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
