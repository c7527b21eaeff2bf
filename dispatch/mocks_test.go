package dispatch

import (
	"context"
	"time"

	"github.com/sig-0/cbrates/storage/types"
)

type getRateDelegate func(context.Context, time.Time, types.Currency, types.Currency) (float64, error)

type mockProvider struct {
	getRateFn getRateDelegate
}

func (m *mockProvider) GetRate(
	ctx context.Context,
	date time.Time,
	currency,
	base types.Currency,
) (float64, error) {
	if m.getRateFn != nil {
		return m.getRateFn(ctx, date, currency, base)
	}

	return 0, nil
}
