package painlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customRange(t *testing.T, start, end time.Time) DateRange {
	t.Helper()
	r, err := ResolveRange(ViewCustom, start, testLoc, start, end)
	require.NoError(t, err)
	return r
}

func TestTimelineSingleDayPlotsRawLevels(t *testing.T) {
	day := at(testLoc, 2024, 1, 1, 0, 0)
	entries := []Entry{
		entryAt(at(testLoc, 2024, 1, 1, 9, 0), level(5)),
		entryAt(at(testLoc, 2024, 1, 1, 15, 0), level(2)),
	}

	chart := TimelineChart(entries, customRange(t, day, day), testLoc)
	assert.Equal(t, ChartSinglePoint, chart.Mode)
	assert.False(t, chart.NoData)
	require.Len(t, chart.Points, 2)
	assert.InDelta(t, 5.0, *chart.Points[0].Y, 1e-9)
	assert.InDelta(t, 2.0, *chart.Points[1].Y, 1e-9)
}

func TestTimelineMultiDayAveragesPerDay(t *testing.T) {
	entries := []Entry{
		entryAt(at(testLoc, 2024, 1, 1, 9, 0), level(5)),
		entryAt(at(testLoc, 2024, 1, 1, 15, 0), level(2)),
		entryAt(at(testLoc, 2024, 1, 2, 9, 0), level(7)),
	}

	chart := TimelineChart(
		entries,
		customRange(t, at(testLoc, 2024, 1, 1, 0, 0), at(testLoc, 2024, 1, 2, 0, 0)),
		testLoc,
	)
	assert.Equal(t, ChartDailyAverage, chart.Mode)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, "2024-01-01", chart.Points[0].X)
	assert.InDelta(t, 3.5, *chart.Points[0].Y, 1e-9)
	assert.Equal(t, "2024-01-02", chart.Points[1].X)
	assert.InDelta(t, 7.0, *chart.Points[1].Y, 1e-9)
}

func TestTimelineDropsEntriesOutsideRange(t *testing.T) {
	entries := []Entry{
		entryAt(at(testLoc, 2023, 12, 31, 23, 59), level(9)),
		entryAt(at(testLoc, 2024, 1, 1, 9, 0), level(5)),
		entryAt(at(testLoc, 2024, 1, 2, 0, 0), level(9)),
	}
	day := at(testLoc, 2024, 1, 1, 0, 0)

	chart := TimelineChart(entries, customRange(t, day, day), testLoc)
	require.Len(t, chart.Points, 1)
	assert.Equal(t, "09:00", chart.Points[0].X)
}

func TestEmptyInputSignalsNoData(t *testing.T) {
	day := at(testLoc, 2024, 1, 1, 0, 0)
	timeline := TimelineChart(nil, customRange(t, day, day), testLoc)
	assert.True(t, timeline.NoData)
	assert.NotNil(t, timeline.Points)
	assert.Empty(t, timeline.Points)

	weekday := WeekdayChart(nil, testLoc)
	assert.True(t, weekday.NoData)
	assert.Len(t, weekday.Points, 7)

	bands := TimeOfDayChart(nil, testLoc)
	assert.True(t, bands.NoData)
	assert.Len(t, bands.Points, 4)

	meds := MedicationChart(nil)
	assert.True(t, meds.NoData)
}

func TestMedicationChartKeepsPairerOrder(t *testing.T) {
	records := []MedicationEffectiveness{
		{Name: "B", MeanDelta: -4, SampleSize: 2},
		{Name: "A", MeanDelta: -1, SampleSize: 1},
	}
	chart := MedicationChart(records)
	assert.False(t, chart.NoData)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, "B", chart.Points[0].X)
	assert.InDelta(t, -4.0, *chart.Points[0].Y, 1e-9)
}
