// Package queue defines the job queue the orchestrator publishes to and consumes from
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
)

// ErrEmpty is returned when a poll ends with no message available
var ErrEmpty = errors.New("no message available")

// Queue is a named, at-most-once job queue
type Queue interface {
	// Declare creates the named queue, if it does not exist
	Declare(ctx context.Context, name string) error

	// Publish appends the body to the named queue
	Publish(ctx context.Context, name string, body []byte) error

	// Consume removes and returns the next message in the named queue,
	// waiting up to wait for one to arrive. Returns ErrEmpty if none did
	Consume(ctx context.Context, name string, wait time.Duration) (*Message, error)

	// Close releases the queue resources
	Close() error
}

// Message is a single delivered queue message
type Message struct {
	PublishedAt time.Time
	Body        []byte
	ID          xid.ID
}

// NewMessage creates a new message with a fresh ID
func NewMessage(body []byte) *Message {
	return &Message{
		ID:          xid.New(),
		Body:        body,
		PublishedAt: time.Now().UTC(),
	}
}
