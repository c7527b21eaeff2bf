package rates

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cbrates/cache"
	"github.com/sig-0/cbrates/provider/cbr"
	"github.com/sig-0/cbrates/provider/currencies"
	"github.com/sig-0/cbrates/storage/memory"
	"github.com/sig-0/cbrates/storage/mock"
	"github.com/sig-0/cbrates/storage/types"
)

type fetchDelegate func(context.Context, time.Time) (*cbr.Document, error)

type mockFeed struct {
	fetchFn fetchDelegate
}

func (m *mockFeed) Fetch(ctx context.Context, date time.Time) (*cbr.Document, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, date)
	}

	return nil, nil
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<ValCurs Date="01.01.2022" name="Foreign Currency Market">
	<Valute ID="R01235"><CharCode>USD</CharCode><Nominal>1</Nominal><Value>75,0000</Value></Valute>
	<Valute ID="R01239"><CharCode>EUR</CharCode><Nominal>1</Nominal><Value>85,0000</Value></Valute>
	<Valute ID="R01820"><CharCode>JPY</CharCode><Nominal>100</Nominal><Value>65,0000</Value></Valute>
	<Valute ID="R99999"><CharCode>BAD</CharCode><Nominal>1</Nominal><Value>n/a</Value></Valute>
</ValCurs>`

// staticFeed returns a feed serving the test document, counting fetches
func staticFeed(t *testing.T, calls *atomic.Int32) *mockFeed {
	t.Helper()

	doc, err := cbr.Parse([]byte(testFeed))
	require.NoError(t, err)

	return &mockFeed{
		fetchFn: func(_ context.Context, _ time.Time) (*cbr.Document, error) {
			if calls != nil {
				calls.Add(1)
			}

			return doc, nil
		},
	}
}

func TestResolver_GetRate(t *testing.T) {
	t.Parallel()

	date := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("native base", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		rate, err := r.GetRate(context.Background(), date, currencies.USD, currencies.RUR)
		require.NoError(t, err)

		assert.InDelta(t, 75.0, rate, 1e-9)
	})

	t.Run("native base alias", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		rate, err := r.GetRate(context.Background(), date, currencies.EUR, currencies.RUB)
		require.NoError(t, err)

		assert.InDelta(t, 85.0, rate, 1e-9)
	})

	t.Run("cross rate", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		rate, err := r.GetRate(context.Background(), date, currencies.EUR, currencies.USD)
		require.NoError(t, err)

		assert.InDelta(t, 1.1333, rate, 1e-4)
	})

	t.Run("cross rate with nominal", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		// 100 JPY = 65 RUR, 1 USD = 75 RUR
		rate, err := r.GetRate(context.Background(), date, currencies.JPY, currencies.USD)
		require.NoError(t, err)

		assert.InDelta(t, 65.0/75.0/100.0, rate, 1e-12)

		rate, err = r.GetRate(context.Background(), date, currencies.USD, currencies.JPY)
		require.NoError(t, err)

		assert.InDelta(t, 75.0/65.0*100.0, rate, 1e-9)
	})

	t.Run("native currency against a foreign base", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		rate, err := r.GetRate(context.Background(), date, currencies.RUR, currencies.USD)
		require.NoError(t, err)

		assert.InDelta(t, 1.0/75.0, rate, 1e-12)
	})

	t.Run("same currency", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		r := New(staticFeed(t, &calls), cache.New(memory.NewStorage()))

		rate, err := r.GetRate(context.Background(), date, currencies.USD, currencies.USD)
		require.NoError(t, err)

		assert.Equal(t, 1.0, rate)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("cached within ttl", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		r := New(staticFeed(t, &calls), cache.New(memory.NewStorage()))

		for i := 0; i < 3; i++ {
			_, err := r.GetRate(context.Background(), date, currencies.USD, currencies.RUR)
			require.NoError(t, err)
		}

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("currency not found", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		rate, err := r.GetRate(context.Background(), date, "XYZ", currencies.RUR)

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.Zero(t, rate)
	})

	t.Run("base not found", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		_, err := r.GetRate(context.Background(), date, currencies.USD, "XYZ")

		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("malformed value", func(t *testing.T) {
		t.Parallel()

		r := New(staticFeed(t, nil), cache.New(memory.NewStorage()))

		_, err := r.GetRate(context.Background(), date, "BAD", currencies.RUR)

		assert.ErrorIs(t, err, types.ErrParse)
	})

	t.Run("fetch failure is not cached", func(t *testing.T) {
		t.Parallel()

		var (
			calls atomic.Int32
			good  = staticFeed(t, nil)
		)

		feed := &mockFeed{
			fetchFn: func(ctx context.Context, d time.Time) (*cbr.Document, error) {
				if calls.Add(1) == 1 {
					return nil, types.NewError(types.KindFetch, "feed down", errors.New("connection refused"))
				}

				return good.Fetch(ctx, d)
			},
		}

		r := New(feed, cache.New(memory.NewStorage()))

		_, err := r.GetRate(context.Background(), date, currencies.USD, currencies.RUR)
		assert.ErrorIs(t, err, types.ErrFetch)

		rate, err := r.GetRate(context.Background(), date, currencies.USD, currencies.RUR)
		require.NoError(t, err)

		assert.InDelta(t, 75.0, rate, 1e-9)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("cache failure", func(t *testing.T) {
		t.Parallel()

		store := &mock.Storage{
			GetFn: func(_ context.Context, _ string) (float64, bool, error) {
				return 0, false, errors.New("backend unreachable")
			},
		}

		r := New(staticFeed(t, nil), cache.New(store))

		_, err := r.GetRate(context.Background(), date, currencies.USD, currencies.RUR)

		assert.ErrorIs(t, err, types.ErrCache)
	})

	t.Run("custom native base", func(t *testing.T) {
		t.Parallel()

		r := New(
			staticFeed(t, nil),
			cache.New(memory.NewStorage()),
			WithNativeBase(currencies.USD),
		)

		rate, err := r.GetRate(context.Background(), date, currencies.EUR, currencies.USD)
		require.NoError(t, err)

		// The raw EUR value is returned as-is against the configured native base
		assert.InDelta(t, 85.0, rate, 1e-9)
	})
}
