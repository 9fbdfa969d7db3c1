package painlog

import (
	"sort"
	"time"
)

// Pairing window between a dose entry and its outcome entry. Both ends are
// inclusive.
const (
	PairingWindowMin = 2 * time.Hour
	PairingWindowMax = 4 * time.Hour
)

type MedicationEffectiveness struct {
	Name            string   `json:"name"`
	MeanDelta       float64  `json:"mean_delta"`
	SampleSize      int      `json:"sample_size"`
	SideEffectCount int      `json:"side_effect_count"`
	RxCount         int      `json:"rx_count"`
	TotalCount      int      `json:"total_count"`
	SideEffectRate  *float64 `json:"side_effect_rate"`
	Deltas          []int    `json:"deltas"`
}

type medicationTally struct {
	deltas      []int
	sideEffects int
	rx          int
	total       int
}

// MedicationEffectivenessFor pairs every dose entry with the first later
// entry inside the pairing window and averages the pain delta per medication
// name. Output is most effective (most negative mean delta) first.
//
// A name listed twice on one entry contributes two samples.
func MedicationEffectivenessFor(entries []Entry) []MedicationEffectiveness {
	ordered := SortedByTime(entries)
	tallies := map[string]*medicationTally{}

	for idx, dose := range ordered {
		if dose.LoggedAt.IsZero() || dose.PainLevel == nil || len(dose.Medications) == 0 {
			continue
		}
		outcome, ok := nextInWindow(ordered, idx)
		if !ok || outcome.PainLevel == nil {
			continue
		}
		delta := *outcome.PainLevel - *dose.PainLevel
		for _, name := range dose.Medications.Names() {
			tally, exists := tallies[name]
			if !exists {
				tally = &medicationTally{}
				tallies[name] = tally
			}
			tally.deltas = append(tally.deltas, delta)
			tally.total++
			if dose.HadSideEffects() {
				tally.sideEffects++
			}
			if dose.TookRx() {
				tally.rx++
			}
		}
	}

	result := make([]MedicationEffectiveness, 0, len(tallies))
	for name, tally := range tallies {
		if len(tally.deltas) == 0 {
			continue
		}
		sum := 0
		for _, d := range tally.deltas {
			sum += d
		}
		var rate *float64
		if tally.total > 0 {
			v := float64(tally.sideEffects) / float64(tally.total) * 100
			rate = &v
		}
		result = append(result, MedicationEffectiveness{
			Name:            name,
			MeanDelta:       float64(sum) / float64(len(tally.deltas)),
			SampleSize:      len(tally.deltas),
			SideEffectCount: tally.sideEffects,
			RxCount:         tally.rx,
			TotalCount:      tally.total,
			SideEffectRate:  rate,
			Deltas:          tally.deltas,
		})
	}
	return SortByMeanDelta(result)
}

// SortByMeanDelta orders ascending by mean delta, then by name. It returns a
// sorted copy and is idempotent.
func SortByMeanDelta(records []MedicationEffectiveness) []MedicationEffectiveness {
	sorted := make([]MedicationEffectiveness, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MeanDelta != sorted[j].MeanDelta {
			return sorted[i].MeanDelta < sorted[j].MeanDelta
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// nextInWindow scans forward only. ordered must be sorted by LoggedAt.
func nextInWindow(ordered []Entry, idx int) (Entry, bool) {
	start := ordered[idx].LoggedAt
	for j := idx + 1; j < len(ordered); j++ {
		candidate := ordered[j]
		if candidate.LoggedAt.IsZero() {
			continue
		}
		gap := candidate.LoggedAt.Sub(start)
		if gap < PairingWindowMin {
			continue
		}
		if gap > PairingWindowMax {
			return Entry{}, false
		}
		return candidate, true
	}
	return Entry{}, false
}
