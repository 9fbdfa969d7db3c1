package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paintrack/backend/internal/db"
	"paintrack/backend/internal/painlog"
)

const maxCustomRangeDays = 366

// viewSnapshot is the entry set a chart or insight request aggregates over.
type viewSnapshot struct {
	View    painlog.View
	Range   painlog.DateRange
	Loc     *time.Location
	Entries []painlog.Entry
}

func (s viewSnapshot) meta() gin.H {
	return gin.H{
		"view":     string(s.View),
		"start":    painlog.DayKey(s.Range.Start, s.Loc),
		"end":      painlog.DayKey(s.Range.End, s.Loc),
		"timezone": s.Loc.String(),
	}
}

// loadViewSnapshot resolves view/start/end from the query and loads the
// caller's entries inside that range. It writes the error response itself.
func (a *App) loadViewSnapshot(c *gin.Context, userID string) (viewSnapshot, bool) {
	view, err := painlog.ParseView(c.Query("view"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return viewSnapshot{}, false
	}
	loc, err := a.userLocation(c.Request.Context(), userID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return viewSnapshot{}, false
	}

	var start, end time.Time
	if view == painlog.ViewCustom {
		start, err = parseDate(c.Query("start"), loc)
		if err != nil {
			writeError(c, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return viewSnapshot{}, false
		}
		end, err = parseDate(c.Query("end"), loc)
		if err != nil {
			writeError(c, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return viewSnapshot{}, false
		}
	}
	r, err := painlog.ResolveRange(view, a.now(), loc, start, end)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return viewSnapshot{}, false
	}
	if r.Days() > maxCustomRangeDays {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("custom range must not exceed %d days", maxCustomRangeDays))
		return viewSnapshot{}, false
	}

	entries, err := db.ListPainLogs(c.Request.Context(), a.db, userID, db.PainLogFilter{Start: r.Start, End: r.End})
	if err != nil {
		a.logger.Error("load pain log snapshot failed", zap.String("user_id", userID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain logs")
		return viewSnapshot{}, false
	}
	return viewSnapshot{View: view, Range: r, Loc: loc, Entries: entries}, true
}

func (a *App) timelineChart(c *gin.Context) {
	a.writeChart(c, func(s viewSnapshot) painlog.Chart {
		return painlog.TimelineChart(s.Entries, s.Range, s.Loc)
	})
}

func (a *App) weekdayChart(c *gin.Context) {
	a.writeChart(c, func(s viewSnapshot) painlog.Chart {
		return painlog.WeekdayChart(s.Entries, s.Loc)
	})
}

func (a *App) timeOfDayChart(c *gin.Context) {
	a.writeChart(c, func(s viewSnapshot) painlog.Chart {
		return painlog.TimeOfDayChart(s.Entries, s.Loc)
	})
}

func (a *App) writeChart(c *gin.Context, build func(viewSnapshot) painlog.Chart) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	snapshot, ok := a.loadViewSnapshot(c, user.ID)
	if !ok {
		return
	}
	response := snapshot.meta()
	response["chart"] = build(snapshot)
	c.JSON(http.StatusOK, response)
}

func (a *App) medicationChart(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	snapshot, ok := a.loadViewSnapshot(c, user.ID)
	if !ok {
		return
	}
	records := painlog.MedicationEffectivenessFor(snapshot.Entries)
	response := snapshot.meta()
	response["medications"] = records
	response["chart"] = painlog.MedicationChart(records)
	c.JSON(http.StatusOK, response)
}

func (a *App) patternInsights(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	snapshot, ok := a.loadViewSnapshot(c, user.ID)
	if !ok {
		return
	}
	summary := painlog.AnalyzePatterns(snapshot.Entries, snapshot.Loc, painlog.DefaultTopN)
	response := snapshot.meta()
	response["summary"] = summary
	response["summary_lines"] = summary.PromptLines()
	c.JSON(http.StatusOK, response)
}

func (a *App) calendarMonth(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	year, month, err := parseMonth(c.Query("month"), a.now().In(loc))
	if err != nil {
		writeError(c, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, 0).Add(-time.Nanosecond)

	entries, err := db.ListPainLogs(c.Request.Context(), a.db, user.ID, db.PainLogFilter{Start: first, End: last})
	if err != nil {
		a.logger.Error("load calendar entries failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":    first.Format("2006-01"),
		"timezone": loc.String(),
		"days":     painlog.CalendarMonth(entries, year, month, loc),
	})
}

func (a *App) quickTodaySummary(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	today, err := painlog.ResolveRange(painlog.ViewToday, a.now(), loc, time.Time{}, time.Time{})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to resolve today")
		return
	}
	entries, err := db.ListPainLogs(c.Request.Context(), a.db, user.ID, db.PainLogFilter{Start: today.Start, End: today.End})
	if err != nil {
		a.logger.Error("load today entries failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":           painlog.DayKey(today.Start, loc),
		"summary_lines":  todaySummaryLines(entries, loc),
		"reference_text": "Derived from today's pain logs.",
	})
}

func todaySummaryLines(entries []painlog.Entry, loc *time.Location) []string {
	if len(entries) == 0 {
		return []string{"No pain logs yet today."}
	}
	summary := painlog.AnalyzePatterns(entries, loc, painlog.DefaultTopN)
	lines := []string{fmt.Sprintf("Entries today: %d", summary.EntryCount)}
	if summary.MeanPain != nil && summary.MaxPain != nil {
		lines = append(lines,
			fmt.Sprintf("Average pain: %.1f/10", *summary.MeanPain),
			fmt.Sprintf("Worst pain: %d/10", *summary.MaxPain),
		)
	} else {
		lines = append(lines, "No pain level recorded today.")
	}

	seen := map[string]struct{}{}
	taken := make([]string, 0)
	for _, entry := range entries {
		for _, name := range entry.Medications.Names() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			taken = append(taken, name)
		}
	}
	if len(taken) > 0 {
		lines = append(lines, "Medications taken: "+strings.Join(taken, ", "))
	}
	return lines
}

var errInvalidMonth = errors.New("invalid month")

// parseMonth reads YYYY-MM; an empty value means the month containing now.
func parseMonth(raw string, now time.Time) (int, time.Month, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return now.Year(), now.Month(), nil
	}
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, errInvalidMonth
	}
	return parsed.Year(), parsed.Month(), nil
}
