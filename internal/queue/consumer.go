package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
)

// Consumer drains the notification queues and appends one line per message
// to a log file, standing in for the external email service.
type Consumer struct {
	url            string
	confirmedQueue string
	reminderQueue  string
	logPath        string
	logg           *logger.Logger

	mu   sync.Mutex
	sink io.Writer
}

func NewConsumer(cfg config.RabbitMQConfig, logg *logger.Logger) *Consumer {
	return &Consumer{
		url:            cfg.URL,
		confirmedQueue: cfg.ConfirmedQueue,
		reminderQueue:  cfg.ReminderQueue,
		logPath:        cfg.NotifyLogPath,
		logg:           logg,
	}
}

// Run connects with exponential backoff and consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.sink == nil {
		f, err := openAppend(c.logPath)
		if err != nil {
			return err
		}
		defer f.Close()
		c.sink = f
	}

	backoff := time.Second
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"error": err.Error(), "retry_in": backoff.String()}), "broker dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) dial(ctx context.Context) (*amqp.Connection, error) {
	dctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	return dialBroker(dctx, c.url)
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	// Forwarders stop with this loop, not only with the caller's ctx.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "set QoS failed")
	}

	deliveries := make(chan amqp.Delivery)
	for _, queue := range []string{c.confirmedQueue, c.reminderQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", queue, err)
		}
		msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", queue, err)
		}
		go forward(ctx, msgs, deliveries)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d := <-deliveries:
			if err := c.Handle(d.RoutingKey, d.Body); err != nil {
				c.logg.Error(c.logg.WithField(ctx, "queue", d.RoutingKey), "handle message failed", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// forward relays msgs into out until msgs closes or ctx ends.
func forward(ctx context.Context, msgs <-chan amqp.Delivery, out chan<- amqp.Delivery) {
	for d := range msgs {
		select {
		case out <- d:
		case <-ctx.Done():
			return
		}
	}
}

// Handle renders one message from queue into the notification log.
func (c *Consumer) Handle(queue string, body []byte) error {
	var line string
	switch queue {
	case c.confirmedQueue:
		var ev BookingConfirmed
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal confirmation: %w", err)
		}
		line = fmt.Sprintf("[%s] CONFIRMATION to=%q name=%q reservation_id=%d restaurant=%q seats=%d start=%s end=%s\n",
			ev.ConfirmedAt, ev.To, ev.Name, ev.ReservationID, ev.RestaurantName, ev.Seats, ev.StartAt, ev.EndAt)
	case c.reminderQueue:
		var ev ReminderRequested
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal reminder: %w", err)
		}
		line = fmt.Sprintf("[%s] REMINDER to=%q name=%q reservation_id=%d restaurant=%q time=%q\n",
			time.Now().UTC().Format(time.RFC3339), ev.To, ev.Name, ev.ReservationID, ev.Restaurant, ev.Time)
	default:
		return fmt.Errorf("unexpected queue %q", queue)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.sink, line); err != nil {
		return fmt.Errorf("write notification log: %w", err)
	}
	return nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open notification log: %w", err)
	}
	return f, nil
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
