package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paintrack/backend/internal/painlog"
)

func TestBuildSeedEntriesIsDeterministic(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 23, 59, 0, 0, loc)

	first := buildSeedEntries(now, 14, loc, 42)
	second := buildSeedEntries(now, 14, loc, 42)
	require.Len(t, first, 14*len(seedSlots))
	require.Len(t, second, len(first))

	for i := range first {
		assert.True(t, first[i].LoggedAt.Equal(second[i].LoggedAt))
		assert.Equal(t, *first[i].PainLevel, *second[i].PainLevel)
		assert.Equal(t, first[i].Medications.Names(), second[i].Medications.Names())
		assert.NotEqual(t, first[i].ID, second[i].ID)
	}
}

func TestBuildSeedEntriesStaysInsideLocalDays(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	entries := buildSeedEntries(now, 3, loc, 1)
	// The 20:xx slot on the current day is still in the future.
	require.Len(t, entries, 3*len(seedSlots)-1)

	firstDay := painlog.StartOfDay(now, loc).AddDate(0, 0, -2)
	for _, entry := range entries {
		assert.False(t, entry.LoggedAt.Before(firstDay))
		assert.False(t, entry.LoggedAt.After(now))
		require.NotNil(t, entry.PainLevel)
		assert.True(t, painlog.ValidPainLevel(*entry.PainLevel))
	}
}

func TestBuildSeedEntriesFeedsMedicationPairing(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	entries := buildSeedEntries(now, 30, time.UTC, 7)

	records := painlog.MedicationEffectivenessFor(entries)
	var ibuprofen *painlog.MedicationEffectiveness
	for i := range records {
		if records[i].Name == "Ibuprofen" {
			ibuprofen = &records[i]
		}
	}
	require.NotNil(t, ibuprofen, "morning doses should pair with the late-morning follow-up")
	assert.Positive(t, ibuprofen.SampleSize)
	assert.Equal(t, ibuprofen.TotalCount, ibuprofen.SampleSize)
}

func TestRootCmdRequiresUserID(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"cleanup", "--db", "postgres://unused"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user-id")
}

func TestRootCmdRejectsOutOfRangeDays(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"seed", "--user-id", "u1", "--days", "0"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--days")
}

func TestClampLevel(t *testing.T) {
	assert.Equal(t, painlog.MinPainLevel, clampLevel(-2))
	assert.Equal(t, 5, clampLevel(5))
	assert.Equal(t, painlog.MaxPainLevel, clampLevel(14))
}
