package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cbrates/storage/types"
)

type (
	fetchExchangeRateDelegate func(context.Context, time.Time, types.Currency, types.Currency) (float64, error)
	fetchRatesAsyncDelegate   func(context.Context, types.RateQuery) <-chan types.RateResult
)

type mockFetcher struct {
	fetchExchangeRateFn fetchExchangeRateDelegate
	fetchRatesAsyncFn   fetchRatesAsyncDelegate
}

func (m *mockFetcher) FetchExchangeRate(
	ctx context.Context,
	date time.Time,
	currency, base types.Currency,
) (float64, error) {
	if m.fetchExchangeRateFn != nil {
		return m.fetchExchangeRateFn(ctx, date, currency, base)
	}

	return 0, nil
}

func (m *mockFetcher) FetchRatesAsync(ctx context.Context, query types.RateQuery) <-chan types.RateResult {
	if m.fetchRatesAsyncFn != nil {
		return m.fetchRatesAsyncFn(ctx, query)
	}

	ch := make(chan types.RateResult)
	close(ch)

	return ch
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func resultChan(result types.RateResult) <-chan types.RateResult {
	ch := make(chan types.RateResult, 1)
	ch <- result
	close(ch)

	return ch
}

func TestFetch_ParseArgs(t *testing.T) {
	t.Parallel()

	now := time.Date(2022, time.January, 10, 15, 0, 0, 0, time.UTC)

	t.Run("valid arguments", func(t *testing.T) {
		t.Parallel()

		testTable := []struct {
			name     string
			args     []string
			expected types.RateQuery
		}{
			{
				"default base",
				[]string{"01.01.2022", "USD"},
				types.RateQuery{Date: date(2022, time.January, 1), Currency: "USD", Base: "RUR"},
			},
			{
				"explicit base",
				[]string{"01.01.2022", "USD", "EUR"},
				types.RateQuery{Date: date(2022, time.January, 1), Currency: "USD", Base: "EUR"},
			},
			{
				"today",
				[]string{"10.01.2022", "JPY"},
				types.RateQuery{Date: date(2022, time.January, 10), Currency: "JPY", Base: "RUR"},
			},
		}

		for _, testCase := range testTable {
			t.Run(testCase.name, func(t *testing.T) {
				t.Parallel()

				query, err := parseArgs(testCase.args, now)
				require.NoError(t, err)

				assert.Equal(t, testCase.expected, query)
			})
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		t.Parallel()

		testTable := []struct {
			name     string
			args     []string
			expected error
		}{
			{"no arguments", nil, errInvalidArgs},
			{"missing currency", []string{"01.01.2022"}, errInvalidArgs},
			{"too many arguments", []string{"01.01.2022", "USD", "RUR", "EUR"}, errInvalidArgs},
			{"iso date", []string{"2022-01-01", "USD"}, errInvalidDate},
			{"impossible date", []string{"31.02.2022", "USD"}, errInvalidDate},
			{"lowercase currency", []string{"01.01.2022", "usd"}, errInvalidCurrency},
			{"long currency", []string{"01.01.2022", "USDT"}, errInvalidCurrency},
			{"lowercase base", []string{"01.01.2022", "USD", "eur"}, errInvalidBase},
			{"future date", []string{"11.01.2022", "USD"}, errFutureDate},
		}

		for _, testCase := range testTable {
			t.Run(testCase.name, func(t *testing.T) {
				t.Parallel()

				_, err := parseArgs(testCase.args, now)

				assert.ErrorIs(t, err, testCase.expected)
			})
		}
	})
}

func TestFetch_Run(t *testing.T) {
	t.Parallel()

	query := types.RateQuery{
		Date:     date(2022, time.January, 1),
		Currency: "USD",
		Base:     "RUR",
	}

	t.Run("queued rates", func(t *testing.T) {
		t.Parallel()

		var (
			out bytes.Buffer

			capturedQuery types.RateQuery
		)

		fetcher := &mockFetcher{
			fetchRatesAsyncFn: func(_ context.Context, q types.RateQuery) <-chan types.RateResult {
				capturedQuery = q

				return resultChan(types.OK(73.123, 72.123))
			},
		}

		require.NoError(t, run(context.Background(), fetcher, query, false, &out, discardLogger))

		assert.Equal(t, query, capturedQuery)
		assert.Equal(
			t,
			"Base currency: RUR\n"+
				"Exchange rate for USD on 2022-01-01: 73.123\n"+
				"Exchange rate on previous trading day: 72.123\n"+
				"Rate difference with previous trading day: +1.0000\n",
			out.String(),
		)
	})

	t.Run("negative difference", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer

		fetcher := &mockFetcher{
			fetchRatesAsyncFn: func(_ context.Context, _ types.RateQuery) <-chan types.RateResult {
				return resultChan(types.OK(70.5, 71))
			},
		}

		require.NoError(t, run(context.Background(), fetcher, query, false, &out, discardLogger))

		assert.Contains(t, out.String(), "Rate difference with previous trading day: -0.5000\n")
	})

	t.Run("failed result", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer

		fetcher := &mockFetcher{
			fetchRatesAsyncFn: func(_ context.Context, _ types.RateQuery) <-chan types.RateResult {
				return resultChan(types.Failed(types.NewError(types.KindFetch, "feed down", nil)))
			},
		}

		require.NoError(t, run(context.Background(), fetcher, query, false, &out, discardLogger))

		assert.Equal(t, failedMessage+"\n", out.String())
	})

	t.Run("direct rates", func(t *testing.T) {
		t.Parallel()

		var (
			out bytes.Buffer

			mux   sync.Mutex
			dates []time.Time
		)

		fetcher := &mockFetcher{
			fetchExchangeRateFn: func(
				_ context.Context,
				d time.Time,
				currency, base types.Currency,
			) (float64, error) {
				mux.Lock()
				defer mux.Unlock()

				dates = append(dates, d)

				assert.Equal(t, query.Currency, currency)
				assert.Equal(t, query.Base, base)

				if d.Equal(query.Date) {
					return 73.123, nil
				}

				return 72.123, nil
			},
			fetchRatesAsyncFn: func(_ context.Context, _ types.RateQuery) <-chan types.RateResult {
				t.Fatal("queue used in direct mode")

				return nil
			},
		}

		require.NoError(t, run(context.Background(), fetcher, query, true, &out, discardLogger))

		// 2022-01-01 is a Saturday
		assert.ElementsMatch(t, []time.Time{query.Date, date(2021, time.December, 31)}, dates)
		assert.Contains(t, out.String(), "Exchange rate on previous trading day: 72.123\n")
	})

	t.Run("direct failure", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer

		fetcher := &mockFetcher{
			fetchExchangeRateFn: func(
				_ context.Context,
				_ time.Time,
				_, _ types.Currency,
			) (float64, error) {
				return 0, errors.New("unreachable")
			},
		}

		require.NoError(t, run(context.Background(), fetcher, query, true, &out, discardLogger))

		assert.Equal(t, failedMessage+"\n", out.String())
	})
}
