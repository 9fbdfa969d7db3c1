package painlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRangeViews(t *testing.T) {
	now := at(testLoc, 2024, 5, 15, 13, 45)

	today, err := ResolveRange(ViewToday, now, testLoc, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, at(testLoc, 2024, 5, 15, 0, 0), today.Start)
	assert.Equal(t, "2024-05-15", DayKey(today.End, testLoc))
	assert.True(t, today.SingleDay())
	assert.Equal(t, 1, today.Days())

	week, err := ResolveRange(ViewWeek, now, testLoc, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, at(testLoc, 2024, 5, 9, 0, 0), week.Start)
	assert.False(t, week.SingleDay())
	assert.Equal(t, 7, week.Days())

	month, err := ResolveRange(ViewMonth, now, testLoc, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 30, month.Days())
}

func TestResolveRangeCustom(t *testing.T) {
	start := at(testLoc, 2024, 1, 1, 18, 0)
	end := at(testLoc, 2024, 1, 3, 6, 0)

	r, err := ResolveRange(ViewCustom, time.Now(), testLoc, start, end)
	require.NoError(t, err)
	assert.Equal(t, at(testLoc, 2024, 1, 1, 0, 0), r.Start)
	assert.Equal(t, at(testLoc, 2024, 1, 4, 0, 0).Add(-time.Nanosecond), r.End)
	assert.Equal(t, 3, r.Days())

	_, err = ResolveRange(ViewCustom, time.Now(), testLoc, end, start)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ResolveRange(ViewCustom, time.Now(), testLoc, time.Time{}, end)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseView(t *testing.T) {
	view, err := ParseView(" Month ")
	require.NoError(t, err)
	assert.Equal(t, ViewMonth, view)

	view, err = ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ViewWeek, view)

	_, err = ParseView("year")
	assert.ErrorIs(t, err, ErrInvalidView)
}

func TestInRangeIsInclusive(t *testing.T) {
	day := at(testLoc, 2024, 1, 1, 0, 0)
	r, err := ResolveRange(ViewCustom, day, testLoc, day, day)
	require.NoError(t, err)

	entries := []Entry{
		entryAt(day, level(1)),
		entryAt(r.End, level(2)),
		entryAt(r.End.Add(time.Nanosecond), level(3)),
	}
	assert.Len(t, InRange(entries, r), 2)
}
