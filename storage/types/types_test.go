package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateQuery_Wire(t *testing.T) {
	t.Parallel()

	t.Run("exact encoding", func(t *testing.T) {
		t.Parallel()

		q := RateQuery{
			Date:     time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
			Currency: "USD",
			Base:     "RUR",
		}

		data, err := EncodeQuery(q)
		require.NoError(t, err)

		assert.Equal(
			t,
			`{"date":"01.01.2022","currency":"USD","base_currency":"RUR"}`,
			string(data),
		)
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		q := RateQuery{
			Date:     time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
			Currency: "EUR",
			Base:     "USD",
		}

		data, err := EncodeQuery(q)
		require.NoError(t, err)

		decoded, err := DecodeQuery(data)
		require.NoError(t, err)

		assert.True(t, q.Date.Equal(decoded.Date))
		assert.Equal(t, q.Currency, decoded.Currency)
		assert.Equal(t, q.Base, decoded.Base)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeQuery([]byte(`{"date":`))
		require.Error(t, err)

		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("malformed date", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeQuery([]byte(`{"date":"2022-01-01","currency":"USD","base_currency":"RUR"}`))
		require.Error(t, err)

		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("missing currency", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeQuery([]byte(`{"date":"01.01.2022","base_currency":"RUR"}`))
		require.Error(t, err)

		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestRateQuery_Equal(t *testing.T) {
	t.Parallel()

	query := RateQuery{
		Date:     time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
		Currency: "USD",
		Base:     "RUR",
	}

	sameDay := query
	sameDay.Date = query.Date.Add(15 * time.Hour)

	otherCurrency := query
	otherCurrency.Currency = "EUR"

	otherBase := query
	otherBase.Base = "EUR"

	otherDay := query
	otherDay.Date = query.Date.AddDate(0, 0, -1)

	assert.True(t, query.Equal(query))
	assert.True(t, query.Equal(sameDay))
	assert.False(t, query.Equal(otherCurrency))
	assert.False(t, query.Equal(otherBase))
	assert.False(t, query.Equal(otherDay))
}

func TestParseCurrency(t *testing.T) {
	t.Parallel()

	t.Run("valid lower-case", func(t *testing.T) {
		t.Parallel()

		c, err := ParseCurrency(" usd ")
		require.NoError(t, err)

		assert.Equal(t, Currency("USD"), c)
	})

	t.Run("invalid length", func(t *testing.T) {
		t.Parallel()

		_, err := ParseCurrency("US")
		assert.ErrorIs(t, err, errInvalidCurrencyLength)
	})

	t.Run("invalid characters", func(t *testing.T) {
		t.Parallel()

		_, err := ParseCurrency("U5D")
		assert.ErrorIs(t, err, errInvalidCurrencyChars)
	})
}

func TestRateResult(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		r := OK(73.123, 72.123)

		assert.True(t, r.IsOK())
		assert.Nil(t, r.Err)
		assert.InDelta(t, 1.0, r.Difference(), 1e-9)
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()

		r := Failed(NewError(KindNotFound, "currency XYZ", nil))

		assert.False(t, r.IsOK())
		require.NotNil(t, r.Err)
		assert.Equal(t, KindNotFound, r.Err.Kind)
	})

	t.Run("failed with nil error", func(t *testing.T) {
		t.Parallel()

		r := Failed(nil)

		assert.False(t, r.IsOK())
		assert.Equal(t, KindUnknown, r.Err.Kind)
	})
}

func TestError_Is(t *testing.T) {
	t.Parallel()

	t.Run("matches by kind through wrapping", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("unable to resolve, %w", NewError(KindFetch, "status 503", nil))

		assert.ErrorIs(t, err, ErrFetch)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Equal(t, KindFetch, KindOf(err))
	})

	t.Run("unwraps the cause", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("boom")
		err := NewError(KindCache, "unable to read", cause)

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "cache error: unable to read: boom", err.Error())
	})

	t.Run("classifies context errors", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, KindCancelled, AsError(context.Canceled).Kind)
		assert.Equal(t, KindTimedOut, AsError(context.DeadlineExceeded).Kind)
		assert.Equal(t, KindUnknown, AsError(errors.New("other")).Kind)
	})
}
