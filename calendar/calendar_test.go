package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPreviousBusinessDay(t *testing.T) {
	t.Parallel()

	t.Run("monday yields friday", func(t *testing.T) {
		t.Parallel()

		// 2024-03-11 is a Monday
		prev := PreviousBusinessDay(date(2024, time.March, 11))

		assert.Equal(t, date(2024, time.March, 8), prev)
		assert.Equal(t, time.Friday, prev.Weekday())
	})

	t.Run("tuesday through friday yield the previous day", func(t *testing.T) {
		t.Parallel()

		for d := 12; d <= 15; d++ {
			day := date(2024, time.March, d)

			assert.Equal(t, day.AddDate(0, 0, -1), PreviousBusinessDay(day), day.Weekday().String())
		}
	})

	t.Run("weekend yields friday", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, date(2024, time.March, 8), PreviousBusinessDay(date(2024, time.March, 9)))
		assert.Equal(t, date(2024, time.March, 8), PreviousBusinessDay(date(2024, time.March, 10)))
	})

	t.Run("crosses year boundary", func(t *testing.T) {
		t.Parallel()

		// 2022-01-01 is a Saturday
		assert.Equal(t, date(2021, time.December, 31), PreviousBusinessDay(date(2022, time.January, 1)))
	})

	t.Run("every result is a weekday", func(t *testing.T) {
		t.Parallel()

		start := date(2023, time.January, 1)

		for i := 0; i < 366; i++ {
			day := start.AddDate(0, 0, i)
			prev := PreviousBusinessDay(day)

			assert.True(t, IsBusinessDay(prev))
			assert.True(t, prev.Before(day))
			assert.LessOrEqual(t, day.Sub(prev), 72*time.Hour)
		}
	})

	t.Run("time of day is preserved", func(t *testing.T) {
		t.Parallel()

		in := time.Date(2024, time.March, 12, 15, 30, 0, 0, time.UTC)

		assert.Equal(t, time.Date(2024, time.March, 11, 15, 30, 0, 0, time.UTC), PreviousBusinessDay(in))
	})
}
