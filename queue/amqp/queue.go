// Package amqp implements the job queue on top of a RabbitMQ broker
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/xid"

	"github.com/sig-0/cbrates/queue"
	"github.com/sig-0/cbrates/storage/types"
)

const defaultPollInterval = 100 * time.Millisecond

var errClosed = errors.New("broker handle closed")

// Queue is a queue.Queue backed by a single broker connection and channel,
// both owned by the Queue and released on Close
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	logger *slog.Logger

	pollInterval time.Duration

	closed bool
	mu     sync.Mutex
}

type Option func(q *Queue)

// WithLogger specifies the logger for the queue
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithPollInterval specifies the pause between empty broker polls.
// Defaults to 100ms
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		q.pollInterval = d
	}
}

// Dial connects to the broker at the given URL and opens the queue channel
func Dial(url string, opts ...Option) (*Queue, error) {
	q := &Queue{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		pollInterval: defaultPollInterval,
	}

	for _, opt := range opts {
		opt(q)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, types.NewError(types.KindBroker, "unable to connect to broker", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, types.NewError(types.KindBroker, "unable to open broker channel", err)
	}

	q.conn = conn
	q.ch = ch

	return q, nil
}

// Declare declares a non-durable, non-exclusive queue.
// Declaring an existing queue with the same parameters is a no-op
func (q *Queue) Declare(_ context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return types.NewError(types.KindBroker, "unable to declare queue", errClosed)
	}

	if _, err := q.ch.QueueDeclare(
		name,
		false, // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return types.NewError(types.KindBroker, fmt.Sprintf("unable to declare queue %q", name), err)
	}

	return nil
}

// Publish publishes the body to the queue through the default exchange
func (q *Queue) Publish(ctx context.Context, name string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return types.NewError(types.KindBroker, "unable to publish", errClosed)
	}

	id := xid.New()

	if err := q.ch.PublishWithContext(
		ctx,
		"",   // default exchange
		name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   id.String(),
			Timestamp:   time.Now().UTC(),
			Body:        body,
		},
	); err != nil {
		return types.NewError(types.KindBroker, fmt.Sprintf("unable to publish to %q", name), err)
	}

	q.logger.Debug(
		"published message",
		"queue", name,
		"id", id.String(),
	)

	return nil
}

// Consume polls the queue until a message arrives or the wait elapses.
// Deliveries are acknowledged on receipt
func (q *Queue) Consume(ctx context.Context, name string, wait time.Duration) (*queue.Message, error) {
	deadline := time.Now().Add(wait)

	for {
		msg, err := q.get(name)
		if err != nil {
			return nil, err
		}

		if msg != nil {
			return msg, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, queue.ErrEmpty
		}

		pause := q.pollInterval
		if remaining < pause {
			pause = remaining
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pause):
		}
	}
}

// get executes a single auto-ack basic.get
func (q *Queue) get(name string) (*queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, types.NewError(types.KindBroker, "unable to consume", errClosed)
	}

	d, ok, err := q.ch.Get(name, true)
	if err != nil {
		return nil, types.NewError(types.KindBroker, fmt.Sprintf("unable to consume from %q", name), err)
	}

	if !ok {
		return nil, nil
	}

	id, err := xid.FromString(d.MessageId)
	if err != nil {
		q.logger.Warn(
			"delivery has no valid message id",
			"queue", name,
			"message_id", d.MessageId,
		)

		id = xid.NilID()
	}

	return &queue.Message{
		ID:          id,
		Body:        d.Body,
		PublishedAt: d.Timestamp,
	}, nil
}

// Close releases the channel, then the connection
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true

	chErr := q.ch.Close()
	connErr := q.conn.Close()

	if err := errors.Join(chErr, connErr); err != nil {
		return types.NewError(types.KindBroker, "unable to close broker handle", err)
	}

	return nil
}
