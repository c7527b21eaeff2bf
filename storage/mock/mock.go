package mock

import (
	"context"
	"time"
)

type (
	GetDelegate    func(context.Context, string) (float64, bool, error)
	SetDelegate    func(context.Context, string, float64, time.Duration) error
	DeleteDelegate func(context.Context, string) error
)

type Storage struct {
	GetFn    GetDelegate
	SetFn    SetDelegate
	DeleteFn DeleteDelegate
}

func (m *Storage) Get(ctx context.Context, key string) (float64, bool, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}

	return 0, false, nil
}

func (m *Storage) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, key, value, ttl)
	}

	return nil
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}

	return nil
}
