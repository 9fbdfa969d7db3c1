package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"paintrack/backend/internal/config"
	"paintrack/backend/internal/painlog"
)

func TestClaimHasAudience(t *testing.T) {
	if !claimHasAudience("expected", "expected") {
		t.Fatalf("expected string audience to match")
	}
	if claimHasAudience("other", "expected") {
		t.Fatalf("expected mismatched string audience to fail")
	}
	if !claimHasAudience([]any{"x", "expected", "y"}, "expected") {
		t.Fatalf("expected []any audience to match")
	}
	if !claimHasAudience([]string{"x", "expected", "y"}, "expected") {
		t.Fatalf("expected []string audience to match")
	}
	if claimHasAudience(nil, "expected") {
		t.Fatalf("expected nil audience to fail")
	}
}

func TestProviderFromClaim(t *testing.T) {
	if got := providerFromClaim("email"); got != "email" {
		t.Fatalf("expected email provider, got %q", got)
	}
	if got := providerFromClaim("myspace"); got != "phone" {
		t.Fatalf("expected phone fallback, got %q", got)
	}
	if got := providerFromClaim(nil); got != "phone" {
		t.Fatalf("expected phone fallback for nil, got %q", got)
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-02-15", nil)
	if err != nil {
		t.Fatalf("expected parseDate to succeed: %v", err)
	}
	if got.Format(time.RFC3339) != "2026-02-15T00:00:00Z" {
		t.Fatalf("unexpected parsed date: %s", got.Format(time.RFC3339))
	}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	got, err = parseDate(" 2026-02-15 ", tokyo)
	if err != nil {
		t.Fatalf("expected padded date to parse: %v", err)
	}
	if got.Format(time.RFC3339) != "2026-02-15T00:00:00+09:00" {
		t.Fatalf("expected local midnight in Tokyo, got %s", got.Format(time.RFC3339))
	}

	if _, err := parseDate("02/15/2026", time.UTC); err == nil {
		t.Fatalf("expected invalid date to fail")
	}
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2026, 7, 9, 12, 0, 0, 0, time.UTC)
	year, month, err := parseMonth("", now)
	if err != nil || year != 2026 || month != time.July {
		t.Fatalf("expected current month, got %d-%d err=%v", year, month, err)
	}
	year, month, err = parseMonth("2025-02", now)
	if err != nil || year != 2025 || month != time.February {
		t.Fatalf("expected 2025-02, got %d-%d err=%v", year, month, err)
	}
	if _, _, err := parseMonth("2025-13", now); err != errInvalidMonth {
		t.Fatalf("expected errInvalidMonth, got %v", err)
	}
}

func TestExtractNumberFromMap(t *testing.T) {
	value := extractNumberFromMap(
		map[string]any{
			"str": "42.5",
			"num": json.Number("12.3"),
		},
		"missing",
		"num",
		"str",
	)
	if value != 12.3 {
		t.Fatalf("expected json.Number to parse first, got %v", value)
	}

	value = extractNumberFromMap(map[string]any{"amount": "17.25"}, "amount")
	if value != 17.25 {
		t.Fatalf("expected string number parse, got %v", value)
	}

	value = extractNumberFromMap(nil, "any")
	if value != 0 {
		t.Fatalf("expected nil map to yield 0, got %v", value)
	}
}

func TestNormalizeTone(t *testing.T) {
	if got := normalizeTone("  CLINICAL "); got != "clinical" {
		t.Fatalf("expected clinical, got %q", got)
	}
	if got := normalizeTone("unsupported"); got != "warm" {
		t.Fatalf("expected warm fallback, got %q", got)
	}
}

func TestTrimLabels(t *testing.T) {
	got := trimLabels([]string{" neck ", "", "neck", "lower back", "   "})
	if strings.Join(got, "|") != "neck|lower back" {
		t.Fatalf("unexpected labels: %#v", got)
	}
	if got := trimLabels(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("  héllo wörld  ", 5); got != "héllo..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("expected untouched value, got %q", got)
	}
	if got := truncateRunes("anything", 0); got != "" {
		t.Fatalf("expected empty for zero max, got %q", got)
	}
}

func TestSanitizeUserFacingAnswer(t *testing.T) {
	answer := "## Summary\n\n  Your pain peaks on Mondays.  \n\n# Next\nLog after meals."
	got := sanitizeUserFacingAnswer(answer)
	want := "Summary\nYour pain peaks on Mondays.\nNext\nLog after meals."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildChatSystemPrompt(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	level := 6
	entries := []painlog.Entry{{
		ID:        "a",
		LoggedAt:  time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
		PainLevel: &level,
		Triggers:  []string{"stress"},
	}}
	summary := painlog.AnalyzePatterns(entries, loc, painlog.DefaultTopN)

	prompt := buildChatSystemPrompt("brief", summary, 30, time.Date(2026, 3, 3, 18, 30, 0, 0, loc))
	if !strings.Contains(prompt, "Tone: brief.") {
		t.Fatalf("expected brief tone instruction, prompt=%s", prompt)
	}
	if !strings.Contains(prompt, "Current local time: 2026-03-03 18:30 (Europe/Berlin)") {
		t.Fatalf("expected local time line, prompt=%s", prompt)
	}
	if !strings.Contains(prompt, "last 30 days") {
		t.Fatalf("expected history window, prompt=%s", prompt)
	}
	for _, line := range summary.PromptLines() {
		if !strings.Contains(prompt, "- "+line) {
			t.Fatalf("expected summary line %q in prompt", line)
		}
	}
}

func TestTodaySummaryLines(t *testing.T) {
	if got := todaySummaryLines(nil, time.UTC); len(got) != 1 || got[0] != "No pain logs yet today." {
		t.Fatalf("unexpected empty summary: %#v", got)
	}

	four, seven := 4, 7
	entries := []painlog.Entry{
		{ID: "1", LoggedAt: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), PainLevel: &four,
			Medications: painlog.MedicationList{painlog.BareNameMedication("Ibuprofen")}},
		{ID: "2", LoggedAt: time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), PainLevel: &seven,
			Medications: painlog.MedicationList{painlog.StructuredMedication{Name: "Ibuprofen"}, painlog.BareNameMedication("Tea")}},
	}
	got := strings.Join(todaySummaryLines(entries, time.UTC), "\n")
	want := "Entries today: 2\nAverage pain: 5.5/10\nWorst pain: 7/10\nMedications taken: Ibuprofen, Tea"
	if got != want {
		t.Fatalf("expected:\n%s\ngot:\n%s", want, got)
	}

	noLevel := []painlog.Entry{{ID: "3", LoggedAt: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)}}
	got = strings.Join(todaySummaryLines(noLevel, time.UTC), "\n")
	if got != "Entries today: 1\nNo pain level recorded today." {
		t.Fatalf("unexpected summary without levels: %q", got)
	}
}

func TestSanitizeCSVFilename(t *testing.T) {
	if got := sanitizeCSVFilename(" a/b c "); got != "a_b_c" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
	if got := sanitizeCSVFilename("///"); got != "user" {
		t.Fatalf("expected user fallback, got %q", got)
	}
}

func TestWritePainLogCSV(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	level := 5
	rx := true
	entries := []painlog.Entry{
		{
			ID:               "late",
			LoggedAt:         time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC),
			PainLevel:        &level,
			Locations:        []string{"neck", "shoulder"},
			Medications:      painlog.MedicationList{painlog.BareNameMedication("Naproxen")},
			RxTaken:          &rx,
			FunctionalImpact: painlog.ImpactLimited,
			Notes:            "said \"ouch\", twice",
		},
		{ID: "early", LoggedAt: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)},
	}

	out, err := writePainLogCSV(entries, loc)
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(painLogCSVHeader, ",") {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "early" || records[2][0] != "late" {
		t.Fatalf("expected oldest first, got %s then %s", records[1][0], records[2][0])
	}
	late := records[2]
	// 03:00 UTC on Mar 4 is still Mar 3 in Chicago.
	if late[2] != "2026-03-03" || late[3] != "21:00" {
		t.Fatalf("expected local date/time, got %s %s", late[2], late[3])
	}
	if late[4] != "5" || late[5] != "neck; shoulder" || late[7] != "Naproxen" || late[9] != "true" {
		t.Fatalf("unexpected row: %v", late)
	}
	if late[12] != "said \"ouch\", twice" {
		t.Fatalf("expected quoted notes to round-trip, got %q", late[12])
	}
	early := records[1]
	if early[4] != "" || early[9] != "" {
		t.Fatalf("expected blanks for missing values, got %v", early)
	}
}

func TestBuildSettingsResponseFallsBackToDefaults(t *testing.T) {
	app := &App{cfg: config.Config{DefaultTone: "neutral", DefaultTimezone: "Asia/Seoul"}, logger: zap.NewNop()}

	got := app.buildSettingsResponse(userSettings{})
	if got["timezone"] != "Asia/Seoul" || got["timezone_source"] != "default" || got["tone"] != "neutral" {
		t.Fatalf("unexpected default response: %#v", got)
	}

	got = app.buildSettingsResponse(userSettings{Timezone: "Europe/Paris", Tone: "brief"})
	if got["timezone"] != "Europe/Paris" || got["timezone_source"] != "user" || got["tone"] != "brief" {
		t.Fatalf("unexpected user response: %#v", got)
	}
}

func TestLocationForIgnoresBrokenStoredZone(t *testing.T) {
	app := &App{cfg: config.Config{DefaultTimezone: "Asia/Seoul"}, logger: zap.NewNop()}
	if got := app.locationFor("u", userSettings{Timezone: "Not/AZone"}); got.String() != "Asia/Seoul" {
		t.Fatalf("expected default zone, got %s", got)
	}
	if got := app.locationFor("u", userSettings{Timezone: "UTC"}); got != time.UTC {
		t.Fatalf("expected stored UTC, got %s", got)
	}

	app.cfg.DefaultTimezone = ""
	if got := app.locationFor("u", userSettings{}); got != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", got)
	}
}

func TestWriteChatExecutionErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app := &App{logger: zap.NewNop()}
	cases := []struct {
		err    error
		status int
	}{
		{ErrAINotConfigured, http.StatusServiceUnavailable},
		{gobreaker.ErrOpenState, http.StatusServiceUnavailable},
		{gobreaker.ErrTooManyRequests, http.StatusServiceUnavailable},
		{&AIProviderError{StatusCode: 500}, http.StatusBadGateway},
		{ErrAIEmptyAnswer, http.StatusBadGateway},
		{ErrAIIncomplete, http.StatusBadGateway},
		{errUserNotFound, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		app.writeChatExecutionError(c, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("err=%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "detail") {
			t.Fatalf("err=%v: expected detail body, got %s", tc.err, rec.Body.String())
		}
	}
}
