package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// BookingQueueName is the durable queue every booking event is routed to.
const BookingQueueName = "booking.events"

// Publisher publishes booking events to RabbitMQ.  The connection is opened
// lazily and reused; a failed publish drops it so the next call redials.
type Publisher struct {
	url  string
	log  *zap.Logger
	dial func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  No connection is
// made until the first Publish.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, dial: amqp.Dial}
}

// Publish sends ev as a persistent JSON message.  One redial is attempted
// when the cached channel turns out to be closed.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	msg, err := encode(ev, time.Now().UTC())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if err = p.ensureChannel(); err != nil {
			p.log.Warn("rabbitmq: connect failed", zap.Error(err))
			p.reset()
			continue
		}
		err = p.ch.PublishWithContext(ctx,
			"",               // default exchange
			BookingQueueName, // routing key = queue name
			false,            // mandatory
			false,            // immediate
			msg,
		)
		if err == nil {
			return nil
		}
		p.log.Warn("rabbitmq: publish failed", zap.Error(err), zap.Int("attempt", attempt+1))
		p.reset()
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("publish %s: %w", ev.Type, err)
}

// Close closes the underlying connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	if err := declare(ch); err != nil {
		_ = ch.Close()
		return err
	}
	p.ch = ch
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// declare ensures the queue exists.  Durable so messages survive broker
// restarts.
func declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

func encode(ev BookingEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(ev.Type),
		MessageId:    ev.BookingID + ":" + string(ev.Type),
		Timestamp:    now,
		Body:         body,
	}, nil
}
