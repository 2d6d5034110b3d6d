package slicer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonths_CoversRangeWithoutGapsOrOverlaps(t *testing.T) {
	from := time.Date(2019, time.November, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

	windows := Months(from, to)
	require.Len(t, windows, 4)

	assert.Equal(t, from, windows[0].From)
	assert.Equal(t, to, windows[len(windows)-1].To)
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].To, windows[i].From, "gap or overlap at window %d", i)
	}
}

func TestMonths_PartialFinalWindow(t *testing.T) {
	from := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, time.February, 15, 0, 0, 0, 0, time.UTC)

	windows := Months(from, to)
	require.Len(t, windows, 2)
	assert.Equal(t, to, windows[1].To)
}

func TestMonths_MidMonthStartSnapsToMonthBoundary(t *testing.T) {
	from := time.Date(2020, time.January, 17, 12, 0, 0, 0, time.UTC)
	to := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

	windows := Months(from, to)
	require.NotEmpty(t, windows)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), windows[0].From)
}

func TestMonths_EmptyRange(t *testing.T) {
	at := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, Months(at, at))
	assert.Empty(t, Months(at.AddDate(0, 1, 0), at))
}

func TestCursor_OrdersLexicographically(t *testing.T) {
	windows := Months(
		time.Date(2019, time.September, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, time.February, 1, 0, 0, 0, 0, time.UTC),
	)
	for i := 1; i < len(windows); i++ {
		assert.Less(t, windows[i-1].Cursor(), windows[i].Cursor())
	}
}

func TestAfter(t *testing.T) {
	windows := Months(
		time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC),
	)

	t.Run("empty cursor returns all windows", func(t *testing.T) {
		assert.Equal(t, windows, After(windows, ""))
	})

	t.Run("resumes strictly after the cursor", func(t *testing.T) {
		resumed := After(windows, "2020-03-01")
		require.Len(t, resumed, 2)
		assert.Equal(t, "2020-04-01", resumed[0].Cursor())
	})

	t.Run("cursor past the end returns nothing", func(t *testing.T) {
		assert.Empty(t, After(windows, "2020-12-01"))
	})
}
