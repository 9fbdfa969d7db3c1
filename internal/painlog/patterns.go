package painlog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const DefaultTopN = 3

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type PatternSummary struct {
	Empty          bool                      `json:"empty"`
	EntryCount     int                       `json:"entry_count"`
	RecordedCount  int                       `json:"recorded_count"`
	MeanPain       *float64                  `json:"mean_pain"`
	MaxPain        *int                      `json:"max_pain"`
	WorstWeekday   *Point                    `json:"worst_weekday"`
	WorstTimeOfDay *Point                    `json:"worst_time_of_day"`
	TopTriggers    []LabelCount              `json:"top_triggers"`
	TopLocations   []LabelCount              `json:"top_locations"`
	TopImpact      string                    `json:"top_impact,omitempty"`
	Medications    []MedicationEffectiveness `json:"medications"`
}

// AnalyzePatterns condenses a snapshot into the figures the chat prompt and
// the insights view need.
func AnalyzePatterns(entries []Entry, loc *time.Location, topN int) PatternSummary {
	if topN <= 0 {
		topN = DefaultTopN
	}
	summary := PatternSummary{
		TopTriggers:  []LabelCount{},
		TopLocations: []LabelCount{},
		Medications:  []MedicationEffectiveness{},
	}

	var overall accumulator
	triggers := map[string]int{}
	locations := map[string]int{}
	impacts := map[string]int{}
	for _, entry := range entries {
		if entry.LoggedAt.IsZero() {
			continue
		}
		summary.EntryCount++
		for _, label := range entry.Triggers {
			triggers[label]++
		}
		for _, label := range entry.Locations {
			locations[label]++
		}
		if entry.FunctionalImpact != "" {
			impacts[entry.FunctionalImpact]++
		}
		if entry.PainLevel == nil {
			continue
		}
		level := *entry.PainLevel
		overall.add(level)
		if summary.MaxPain == nil || level > *summary.MaxPain {
			summary.MaxPain = &level
		}
	}
	if summary.EntryCount == 0 {
		summary.Empty = true
		return summary
	}

	summary.RecordedCount = overall.count
	summary.MeanPain = overall.mean()
	summary.WorstWeekday = highest(ByWeekday(entries, loc))
	summary.WorstTimeOfDay = highest(ByTimeOfDay(entries, loc))
	summary.TopTriggers = topLabels(triggers, topN)
	summary.TopLocations = topLabels(locations, topN)
	if top := topLabels(impacts, 1); len(top) > 0 {
		summary.TopImpact = top[0].Label
	}
	meds := MedicationEffectivenessFor(entries)
	if len(meds) > topN {
		meds = meds[:topN]
	}
	summary.Medications = meds
	return summary
}

// PromptLines renders the summary as short plain-text lines.
func (s PatternSummary) PromptLines() []string {
	if s.Empty {
		return []string{"No pain logs recorded in this period."}
	}
	lines := []string{fmt.Sprintf("Entries: %d (%d with a pain level)", s.EntryCount, s.RecordedCount)}
	if s.MeanPain != nil {
		lines = append(lines, fmt.Sprintf("Average pain: %.1f/10", *s.MeanPain))
	}
	if s.MaxPain != nil {
		lines = append(lines, fmt.Sprintf("Highest pain: %d/10", *s.MaxPain))
	}
	if s.WorstWeekday != nil && s.WorstWeekday.Y != nil {
		lines = append(lines, fmt.Sprintf("Worst weekday: %s (avg %.1f)", s.WorstWeekday.X, *s.WorstWeekday.Y))
	}
	if s.WorstTimeOfDay != nil && s.WorstTimeOfDay.Y != nil {
		lines = append(lines, fmt.Sprintf("Worst time of day: %s (avg %.1f)", s.WorstTimeOfDay.X, *s.WorstTimeOfDay.Y))
	}
	if len(s.TopTriggers) > 0 {
		lines = append(lines, "Common triggers: "+joinLabelCounts(s.TopTriggers))
	}
	if len(s.TopLocations) > 0 {
		lines = append(lines, "Common locations: "+joinLabelCounts(s.TopLocations))
	}
	if s.TopImpact != "" {
		lines = append(lines, "Most common functional impact: "+s.TopImpact)
	}
	for _, med := range s.Medications {
		lines = append(lines, fmt.Sprintf(
			"Medication %s: mean change %+.1f over %d paired logs",
			med.Name,
			med.MeanDelta,
			med.SampleSize,
		))
	}
	return lines
}

// highest picks the bucket with the largest mean; earlier buckets win ties.
func highest(points []Point) *Point {
	var best *Point
	for idx := range points {
		p := points[idx]
		if p.Y == nil {
			continue
		}
		if best == nil || *p.Y > *best.Y {
			best = &p
		}
	}
	return best
}

func topLabels(counts map[string]int, n int) []LabelCount {
	result := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		result = append(result, LabelCount{Label: label, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Label < result[j].Label
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func joinLabelCounts(items []LabelCount) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s (%d)", item.Label, item.Count))
	}
	return strings.Join(parts, ", ")
}
