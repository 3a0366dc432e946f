package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// UserLookup resolves the recipient of a confirmation.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

type sendFunc func(ctx context.Context, queue string, body []byte) error

// Publisher publishes persistent JSON messages to durable queues.  The AMQP
// connection is opened lazily and re-dialed after the broker drops it.
type Publisher struct {
	url            string
	confirmedQueue string
	reminderQueue  string
	users          UserLookup
	logg           *logger.Logger
	send           sendFunc

	mu      sync.Mutex
	conn    *amqp.Connection
	dialing chan struct{}
}

func NewPublisher(cfg config.RabbitMQConfig, users UserLookup, logg *logger.Logger) *Publisher {
	p := &Publisher{
		url:            cfg.URL,
		confirmedQueue: cfg.ConfirmedQueue,
		reminderQueue:  cfg.ReminderQueue,
		users:          users,
		logg:           logg,
	}
	p.send = p.publishAMQP
	return p
}

// BookingConfirmed publishes a confirmation for a committed reservation.  A
// failed recipient lookup still publishes; the mailer can resolve the
// address from the user id.
func (p *Publisher) BookingConfirmed(ctx context.Context, restaurant model.Restaurant, r model.Reservation) error {
	ev := BookingConfirmed{
		ReservationID:  r.ID,
		UserID:         r.UserID,
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
		Seats:          r.Seats,
		StartAt:        r.StartAt.UTC().Format(time.RFC3339),
		EndAt:          r.EndAt.UTC().Format(time.RFC3339),
		ConfirmedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if p.users != nil {
		if u, err := p.users.GetByID(ctx, r.UserID); err == nil {
			ev.To, ev.Name = u.Email, u.FullName
		} else {
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "confirmation recipient lookup failed")
		}
	}
	return p.publishJSON(ctx, p.confirmedQueue, ev)
}

// SendReminder publishes one reminder request.
func (p *Publisher) SendReminder(ctx context.Context, msg ReminderRequested) error {
	return p.publishJSON(ctx, p.reminderQueue, msg)
}

func (p *Publisher) publishJSON(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", queue, err)
	}
	if err := p.send(ctx, queue, body); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// connection returns the shared connection, dialing it when needed. Only one
// caller dials at a time and p.mu is never held across the network; the
// others wait for that dial or for their own ctx, whichever ends first.
func (p *Publisher) connection(ctx context.Context) (*amqp.Connection, error) {
	for {
		p.mu.Lock()
		if p.conn != nil && !p.conn.IsClosed() {
			conn := p.conn
			p.mu.Unlock()
			return conn, nil
		}
		if inflight := p.dialing; inflight != nil {
			p.mu.Unlock()
			select {
			case <-inflight:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("dial broker: %w", ctx.Err())
			}
		}
		done := make(chan struct{})
		p.dialing = done
		p.mu.Unlock()

		conn, err := dialBroker(ctx, p.url)

		p.mu.Lock()
		p.dialing = nil
		if err == nil {
			p.conn = conn
		}
		p.mu.Unlock()
		close(done)

		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		return conn, nil
	}
}

// publishAMQP opens a short-lived channel per message; channels are cheap and
// not safe for concurrent publishers.
func (p *Publisher) publishAMQP(ctx context.Context, queue string, body []byte) error {
	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
