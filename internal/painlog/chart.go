package painlog

import "time"

type ChartMode string

const (
	ChartSinglePoint  ChartMode = "single_point"
	ChartDailyAverage ChartMode = "daily_average"
	ChartWeekday      ChartMode = "weekday"
	ChartTimeOfDay    ChartMode = "time_of_day"
	ChartMedication   ChartMode = "medication"
)

// Chart is the renderer-agnostic coordinate list. NoData tells the caller to
// show an empty state instead of drawing Points.
type Chart struct {
	Mode   ChartMode `json:"mode"`
	Points []Point   `json:"points"`
	NoData bool      `json:"no_data"`
}

func NewChart(mode ChartMode, points []Point) Chart {
	if points == nil {
		points = []Point{}
	}
	return Chart{
		Mode:   mode,
		Points: points,
		NoData: !hasValue(points),
	}
}

// TimelineChart plots raw levels for a one-day range and daily averages
// otherwise. Entries outside r are ignored.
func TimelineChart(entries []Entry, r DateRange, loc *time.Location) Chart {
	loc = orUTC(loc)
	if r.Location == nil {
		r.Location = loc
	}
	inRange := InRange(entries, r)
	if r.SingleDay() {
		return NewChart(ChartSinglePoint, SinglePoints(inRange, loc))
	}
	return NewChart(ChartDailyAverage, ByDay(inRange, loc))
}

func WeekdayChart(entries []Entry, loc *time.Location) Chart {
	return NewChart(ChartWeekday, ByWeekday(entries, loc))
}

func TimeOfDayChart(entries []Entry, loc *time.Location) Chart {
	return NewChart(ChartTimeOfDay, ByTimeOfDay(entries, loc))
}

// MedicationChart plots mean delta per medication in pairer order.
func MedicationChart(records []MedicationEffectiveness) Chart {
	points := make([]Point, 0, len(records))
	for _, record := range records {
		v := record.MeanDelta
		points = append(points, Point{X: record.Name, Y: &v})
	}
	return NewChart(ChartMedication, points)
}

func hasValue(points []Point) bool {
	for _, p := range points {
		if p.Y != nil {
			return true
		}
	}
	return false
}
