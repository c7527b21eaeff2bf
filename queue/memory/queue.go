// Package memory implements an in-process queue handoff
package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sig-0/iq"

	"github.com/sig-0/cbrates/queue"
)

var (
	ErrUnknownQueue = errors.New("queue not declared")
	ErrClosed       = errors.New("queue closed")
)

// pendingMessage is a single buffered message
type pendingMessage struct {
	msg *queue.Message
	seq uint64
}

// Less orders buffered messages by their publish sequence (oldest == first)
func (a pendingMessage) Less(b pendingMessage) bool {
	return a.seq < b.seq
}

// topic is a single named queue
type topic struct {
	q iq.Queue[pendingMessage]

	// signal is closed (and replaced) on every publish
	signal chan struct{}
}

// Queue is an in-process queue.Queue, handing messages
// from publishers to consumers of the same process
type Queue struct {
	logger *slog.Logger

	topics map[string]*topic
	done   chan struct{}

	seq    uint64
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

// New creates a new in-process queue
func New(opts ...Option) *Queue {
	q := &Queue{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		topics: make(map[string]*topic),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

func (q *Queue) Declare(_ context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if _, ok := q.topics[name]; ok {
		return nil
	}

	q.topics[name] = &topic{
		q:      iq.NewQueue[pendingMessage](),
		signal: make(chan struct{}),
	}

	q.logger.Debug("declared queue", "name", name)

	return nil
}

func (q *Queue) Publish(_ context.Context, name string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	t, ok := q.topics[name]
	if !ok {
		return ErrUnknownQueue
	}

	q.seq++

	msg := queue.NewMessage(append([]byte(nil), body...))

	t.q.Push(pendingMessage{
		msg: msg,
		seq: q.seq,
	})

	// Wake up any waiting consumers
	close(t.signal)
	t.signal = make(chan struct{})

	q.logger.Debug(
		"published message",
		"queue", name,
		"id", msg.ID.String(),
	)

	return nil
}

func (q *Queue) Consume(ctx context.Context, name string, wait time.Duration) (*queue.Message, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		msg, signal, err := q.tryPop(name)
		if err != nil {
			return nil, err
		}

		if msg != nil {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
			return nil, ErrClosed
		case <-timer.C:
			return nil, queue.ErrEmpty
		case <-signal:
		}
	}
}

// tryPop pops the oldest message of the named queue, if any.
// If the queue is empty, the channel signalling the next publish is returned
func (q *Queue) tryPop(name string) (*queue.Message, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, nil, ErrClosed
	}

	t, ok := q.topics[name]
	if !ok {
		return nil, nil, ErrUnknownQueue
	}

	if t.q.Len() == 0 {
		return nil, t.signal, nil
	}

	return t.q.PopFront().msg, nil, nil
}

// Len returns the number of buffered messages in the named queue
func (q *Queue) Len(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.topics[name]
	if !ok {
		return 0
	}

	return t.q.Len()
}

// Close drops all buffered messages and wakes up waiting consumers
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	q.topics = nil

	close(q.done)

	return nil
}
