// Package painlog holds the pain-log aggregation pipeline: temporal bucketing,
// medication-effectiveness pairing and chart shaping. Every function here is
// pure. Callers pass a snapshot of entries and a *time.Location; nothing is
// cached and input slices are never mutated.
package painlog

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

const (
	MinPainLevel = 0
	MaxPainLevel = 10
)

// Functional impact labels accepted on a log entry.
const (
	ImpactNone     = "none"
	ImpactLimited  = "limited"
	ImpactStopped  = "stopped"
	ImpactBedBound = "bed_bound"
)

var validImpacts = map[string]struct{}{
	ImpactNone:     {},
	ImpactLimited:  {},
	ImpactStopped:  {},
	ImpactBedBound: {},
}

type Entry struct {
	ID               string         `json:"id"`
	LoggedAt         time.Time      `json:"logged_at"`
	PainLevel        *int           `json:"pain_level"`
	Locations        []string       `json:"locations"`
	Triggers         []string       `json:"triggers"`
	Medications      MedicationList `json:"medications"`
	Notes            string         `json:"notes,omitempty"`
	JournalEntry     string         `json:"journal_entry,omitempty"`
	SideEffects      string         `json:"side_effects,omitempty"`
	RxTaken          *bool          `json:"rx_taken,omitempty"`
	FunctionalImpact string         `json:"functional_impact,omitempty"`
	ImpactTags       []string       `json:"impact_tags,omitempty"`
}

func (e Entry) HasPainLevel() bool {
	return e.PainLevel != nil
}

func (e Entry) HadSideEffects() bool {
	return strings.TrimSpace(e.SideEffects) != ""
}

func (e Entry) TookRx() bool {
	return e.RxTaken != nil && *e.RxTaken
}

// usable reports whether the entry can take part in numeric aggregation.
func (e Entry) usable() bool {
	return !e.LoggedAt.IsZero() && e.PainLevel != nil
}

func ValidPainLevel(level int) bool {
	return level >= MinPainLevel && level <= MaxPainLevel
}

func NormalizeImpact(input string) (string, bool) {
	impact := strings.ToLower(strings.TrimSpace(input))
	impact = strings.ReplaceAll(impact, "-", "_")
	if impact == "" {
		return "", true
	}
	_, ok := validImpacts[impact]
	return impact, ok
}

// RawEntry is an entry as it arrives from storage or a client, before
// timestamps are parsed and medications normalized.
type RawEntry struct {
	ID               string          `json:"id"`
	LoggedAt         string          `json:"logged_at"`
	PainLevel        *int            `json:"pain_level"`
	Locations        []string        `json:"locations"`
	Triggers         []string        `json:"triggers"`
	Medications      json.RawMessage `json:"medications"`
	Notes            string          `json:"notes"`
	JournalEntry     string          `json:"journal_entry"`
	SideEffects      string          `json:"side_effects"`
	RxTaken          *bool           `json:"rx_taken"`
	FunctionalImpact string          `json:"functional_impact"`
	ImpactTags       []string        `json:"impact_tags"`
}

var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseLoggedAt accepts RFC3339 instants and zone-less wall-clock strings,
// which are read in loc.
func ParseLoggedAt(raw string, loc *time.Location) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, true
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range wallClockLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Normalize converts raw rows into entries sorted by LoggedAt. Rows with an
// unparseable timestamp are dropped; out-of-range pain levels become nil.
func Normalize(raws []RawEntry, loc *time.Location) []Entry {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		loggedAt, ok := ParseLoggedAt(raw.LoggedAt, loc)
		if !ok {
			continue
		}
		var meds MedicationList
		if len(raw.Medications) > 0 {
			if err := json.Unmarshal(raw.Medications, &meds); err != nil {
				meds = nil
			}
		}
		var level *int
		if raw.PainLevel != nil && ValidPainLevel(*raw.PainLevel) {
			v := *raw.PainLevel
			level = &v
		}
		impact, ok := NormalizeImpact(raw.FunctionalImpact)
		if !ok {
			impact = ""
		}
		entries = append(entries, Entry{
			ID:               raw.ID,
			LoggedAt:         loggedAt,
			PainLevel:        level,
			Locations:        cleanLabels(raw.Locations),
			Triggers:         cleanLabels(raw.Triggers),
			Medications:      meds,
			Notes:            raw.Notes,
			JournalEntry:     raw.JournalEntry,
			SideEffects:      raw.SideEffects,
			RxTaken:          raw.RxTaken,
			FunctionalImpact: impact,
			ImpactTags:       cleanLabels(raw.ImpactTags),
		})
	}
	return SortedByTime(entries)
}

// SortedByTime returns a time-ordered copy; ties keep their input order.
func SortedByTime(entries []Entry) []Entry {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LoggedAt.Before(ordered[j].LoggedAt)
	})
	return ordered
}

// InRange keeps entries whose LoggedAt falls inside r (inclusive).
func InRange(entries []Entry, r DateRange) []Entry {
	result := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.LoggedAt.IsZero() {
			continue
		}
		if entry.LoggedAt.Before(r.Start) || entry.LoggedAt.After(r.End) {
			continue
		}
		result = append(result, entry)
	}
	return result
}

func cleanLabels(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, item := range input {
		label := strings.TrimSpace(item)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		result = append(result, label)
	}
	return result
}
