package server

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paintrack/backend/internal/db"
	"paintrack/backend/internal/painlog"
)

var painLogCSVHeader = []string{
	"id",
	"logged_at",
	"local_date",
	"local_time",
	"pain_level",
	"locations",
	"triggers",
	"medications",
	"side_effects",
	"rx_taken",
	"functional_impact",
	"impact_tags",
	"notes",
}

func sanitizeCSVFilename(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "user"
	}
	var b strings.Builder
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	sanitized := strings.Trim(b.String(), "_")
	if sanitized == "" {
		return "user"
	}
	return sanitized
}

func (a *App) exportPainLogsCSV(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	entries, err := db.ListPainLogs(c.Request.Context(), a.db, user.ID, db.PainLogFilter{})
	if err != nil {
		a.logger.Error("export pain logs failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain logs")
		return
	}

	out, err := writePainLogCSV(entries, loc)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to build CSV")
		return
	}

	filename := fmt.Sprintf(
		"paintrack_export_%s_%s.csv",
		sanitizeCSVFilename(user.ID),
		a.now().UTC().Format("20060102_150405"),
	)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.String(http.StatusOK, out)
}

// writePainLogCSV renders entries oldest first. List columns are joined
// with "; " and timestamps are written in loc.
func writePainLogCSV(entries []painlog.Entry, loc *time.Location) (string, error) {
	var out bytes.Buffer
	writer := csv.NewWriter(&out)
	if err := writer.Write(painLogCSVHeader); err != nil {
		return "", err
	}
	for _, entry := range painlog.SortedByTime(entries) {
		local := entry.LoggedAt.In(loc)
		if err := writer.Write([]string{
			entry.ID,
			local.Format(time.RFC3339),
			local.Format("2006-01-02"),
			local.Format("15:04"),
			optionalIntString(entry.PainLevel),
			strings.Join(entry.Locations, "; "),
			strings.Join(entry.Triggers, "; "),
			strings.Join(entry.Medications.Names(), "; "),
			entry.SideEffects,
			optionalBoolString(entry.RxTaken),
			entry.FunctionalImpact,
			strings.Join(entry.ImpactTags, "; "),
			entry.Notes,
		}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func optionalIntString(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func optionalBoolString(value *bool) string {
	if value == nil {
		return ""
	}
	return strconv.FormatBool(*value)
}
