package main

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"paintrack/backend/internal/painlog"
)

type seedSlot struct {
	hour    int
	minute  int
	base    int
	trigger string
}

// Morning dose at 08:xx and its follow-up three hours later fall inside the
// pairing window, so the medication chart has data.
var seedSlots = []seedSlot{
	{hour: 8, minute: 10, base: 6, trigger: "sleep"},
	{hour: 11, minute: 15, base: 4, trigger: "posture"},
	{hour: 20, minute: 30, base: 5, trigger: "stress"},
}

var seedLocations = []string{"lower back", "neck", "left knee"}

// buildSeedEntries returns days of history ending on the local day of now.
// The same seed always yields the same levels and labels.
func buildSeedEntries(now time.Time, days int, loc *time.Location, seed uint64) []painlog.Entry {
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	today := painlog.StartOfDay(now, loc)
	entries := make([]painlog.Entry, 0, days*len(seedSlots))

	for offset := days - 1; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset)
		weekdayBump := 0
		if day.Weekday() == time.Monday || day.Weekday() == time.Friday {
			weekdayBump = 1
		}
		for i, slot := range seedSlots {
			loggedAt := time.Date(day.Year(), day.Month(), day.Day(), slot.hour, slot.minute+rnd.IntN(20), 0, 0, loc)
			if loggedAt.After(now) {
				continue
			}
			level := clampLevel(slot.base + weekdayBump + rnd.IntN(3) - 1)
			entry := painlog.Entry{
				ID:        uuid.NewString(),
				LoggedAt:  loggedAt,
				PainLevel: &level,
				Locations: []string{seedLocations[(offset+i)%len(seedLocations)]},
				Triggers:  []string{slot.trigger},
			}
			if i == 0 && level >= 6 {
				rx := false
				entry.Medications = painlog.MedicationList{
					painlog.StructuredMedication{Name: "Ibuprofen", Dose: "400", Unit: "mg", Rx: &rx},
				}
				entry.RxTaken = &rx
				entry.FunctionalImpact = painlog.ImpactLimited
			}
			if i == 2 && rnd.IntN(4) == 0 {
				entry.Medications = painlog.MedicationList{painlog.BareNameMedication("Acetaminophen")}
				entry.SideEffects = "mild nausea"
			}
			entries = append(entries, entry)
		}
	}
	return entries
}

func clampLevel(level int) int {
	if level < painlog.MinPainLevel {
		return painlog.MinPainLevel
	}
	if level > painlog.MaxPainLevel {
		return painlog.MaxPainLevel
	}
	return level
}
