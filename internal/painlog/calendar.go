package painlog

import "time"

type CalendarDay struct {
	Date      string   `json:"date"`
	Count     int      `json:"count"`
	MeanPain  *float64 `json:"mean_pain"`
	MaxPain   *int     `json:"max_pain"`
	Medicated bool     `json:"medicated"`
}

// CalendarMonth returns one row per day of the month in loc, including days
// with no entries.
func CalendarMonth(entries []Entry, year int, month time.Month, loc *time.Location) []CalendarDay {
	loc = orUTC(loc)
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	type dayTally struct {
		acc       accumulator
		count     int
		max       *int
		medicated bool
	}
	tallies := map[string]*dayTally{}
	for _, entry := range entries {
		if entry.LoggedAt.IsZero() {
			continue
		}
		local := entry.LoggedAt.In(loc)
		if local.Before(first) || !local.Before(next) {
			continue
		}
		key := local.Format("2006-01-02")
		tally, ok := tallies[key]
		if !ok {
			tally = &dayTally{}
			tallies[key] = tally
		}
		tally.count++
		if len(entry.Medications) > 0 {
			tally.medicated = true
		}
		if entry.PainLevel != nil {
			level := *entry.PainLevel
			tally.acc.add(level)
			if tally.max == nil || level > *tally.max {
				tally.max = &level
			}
		}
	}

	days := make([]CalendarDay, 0, 31)
	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		row := CalendarDay{Date: key}
		if tally, ok := tallies[key]; ok {
			row.Count = tally.count
			row.MeanPain = tally.acc.mean()
			row.MaxPain = tally.max
			row.Medicated = tally.medicated
		}
		days = append(days, row)
	}
	return days
}
