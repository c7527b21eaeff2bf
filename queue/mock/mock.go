package mock

import (
	"context"
	"time"

	"github.com/sig-0/cbrates/queue"
)

type (
	DeclareDelegate func(context.Context, string) error
	PublishDelegate func(context.Context, string, []byte) error
	ConsumeDelegate func(context.Context, string, time.Duration) (*queue.Message, error)
	CloseDelegate   func() error
)

type Queue struct {
	DeclareFn DeclareDelegate
	PublishFn PublishDelegate
	ConsumeFn ConsumeDelegate
	CloseFn   CloseDelegate
}

func (m *Queue) Declare(ctx context.Context, name string) error {
	if m.DeclareFn != nil {
		return m.DeclareFn(ctx, name)
	}

	return nil
}

func (m *Queue) Publish(ctx context.Context, name string, body []byte) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, name, body)
	}

	return nil
}

func (m *Queue) Consume(ctx context.Context, name string, wait time.Duration) (*queue.Message, error) {
	if m.ConsumeFn != nil {
		return m.ConsumeFn(ctx, name, wait)
	}

	return nil, queue.ErrEmpty
}

func (m *Queue) Close() error {
	if m.CloseFn != nil {
		return m.CloseFn()
	}

	return nil
}
