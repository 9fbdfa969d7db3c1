package painlog

import (
	"sort"
	"time"
)

type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyByDay       Strategy = "by_day"
	StrategyByWeekday   Strategy = "by_weekday"
	StrategyByTimeOfDay Strategy = "by_time_of_day"
)

// Point is one chart coordinate. Y is nil for an empty bucket.
type Point struct {
	X     string    `json:"x"`
	Y     *float64  `json:"y"`
	Notes string    `json:"notes,omitempty"`
	At    time.Time `json:"at,omitzero"`
}

type TimeBand int

const (
	BandNight TimeBand = iota
	BandMorning
	BandAfternoon
	BandEvening
)

var bandLabels = [...]string{"Night", "Morning", "Afternoon", "Evening"}

func (b TimeBand) String() string {
	if b < BandNight || b > BandEvening {
		return ""
	}
	return bandLabels[b]
}

// BandForHour maps a local hour onto [0,6) [6,12) [12,18) [18,24).
func BandForHour(hour int) TimeBand {
	switch {
	case hour < 6:
		return BandNight
	case hour < 12:
		return BandMorning
	case hour < 18:
		return BandAfternoon
	default:
		return BandEvening
	}
}

var weekdayLabels = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type accumulator struct {
	sum   int
	count int
}

func (a *accumulator) add(level int) {
	a.sum += level
	a.count++
}

func (a accumulator) mean() *float64 {
	if a.count == 0 {
		return nil
	}
	v := float64(a.sum) / float64(a.count)
	return &v
}

func Bucket(entries []Entry, strategy Strategy, loc *time.Location) []Point {
	switch strategy {
	case StrategyByDay:
		return ByDay(entries, loc)
	case StrategyByWeekday:
		return ByWeekday(entries, loc)
	case StrategyByTimeOfDay:
		return ByTimeOfDay(entries, loc)
	default:
		return SinglePoints(entries, loc)
	}
}

// ByDay averages pain per local calendar day. Days without a recorded level
// are omitted; output is oldest day first.
func ByDay(entries []Entry, loc *time.Location) []Point {
	loc = orUTC(loc)
	buckets := map[string]*accumulator{}
	first := map[string]time.Time{}
	for _, entry := range entries {
		if !entry.usable() {
			continue
		}
		key := DayKey(entry.LoggedAt, loc)
		acc, ok := buckets[key]
		if !ok {
			acc = &accumulator{}
			buckets[key] = acc
			first[key] = StartOfDay(entry.LoggedAt, loc)
		}
		acc.add(*entry.PainLevel)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return first[keys[i]].Before(first[keys[j]])
	})

	points := make([]Point, 0, len(keys))
	for _, key := range keys {
		points = append(points, Point{
			X:  key,
			Y:  buckets[key].mean(),
			At: first[key],
		})
	}
	return points
}

// ByWeekday always returns seven points, Sun through Sat.
func ByWeekday(entries []Entry, loc *time.Location) []Point {
	loc = orUTC(loc)
	var buckets [7]accumulator
	for _, entry := range entries {
		if !entry.usable() {
			continue
		}
		buckets[entry.LoggedAt.In(loc).Weekday()].add(*entry.PainLevel)
	}
	points := make([]Point, 0, len(buckets))
	for idx, acc := range buckets {
		points = append(points, Point{X: weekdayLabels[idx], Y: acc.mean()})
	}
	return points
}

// ByTimeOfDay always returns four points, Night through Evening.
func ByTimeOfDay(entries []Entry, loc *time.Location) []Point {
	loc = orUTC(loc)
	var buckets [4]accumulator
	for _, entry := range entries {
		if !entry.usable() {
			continue
		}
		buckets[BandForHour(entry.LoggedAt.In(loc).Hour())].add(*entry.PainLevel)
	}
	points := make([]Point, 0, len(buckets))
	for idx, acc := range buckets {
		points = append(points, Point{X: TimeBand(idx).String(), Y: acc.mean()})
	}
	return points
}

// SinglePoints emits one point per recorded entry with the raw level. It is
// the single-day chart mode, not an aggregation.
func SinglePoints(entries []Entry, loc *time.Location) []Point {
	loc = orUTC(loc)
	ordered := SortedByTime(entries)
	points := make([]Point, 0, len(ordered))
	for _, entry := range ordered {
		if !entry.usable() {
			continue
		}
		v := float64(*entry.PainLevel)
		points = append(points, Point{
			X:     entry.LoggedAt.In(loc).Format("15:04"),
			Y:     &v,
			Notes: entry.Notes,
			At:    entry.LoggedAt,
		})
	}
	return points
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
