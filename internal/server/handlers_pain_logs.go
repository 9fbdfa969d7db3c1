package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"paintrack/backend/internal/db"
	"paintrack/backend/internal/painlog"
)

const (
	defaultPainLogListLimit = 200
	maxPainLogListLimit     = 1000
)

func (a *App) createPainLog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var payload createPainLogRequest
	if !mustJSON(c, &payload) {
		return
	}

	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	loggedAt := a.now()
	if strings.TrimSpace(payload.LoggedAt) != "" {
		parsed, valid := painlog.ParseLoggedAt(payload.LoggedAt, loc)
		if !valid {
			writeError(c, http.StatusBadRequest, "logged_at must be RFC3339 or YYYY-MM-DDTHH:MM")
			return
		}
		loggedAt = parsed
	}
	impact, _ := painlog.NormalizeImpact(payload.FunctionalImpact)

	entry := painlog.Entry{
		ID:               uuid.NewString(),
		LoggedAt:         loggedAt,
		PainLevel:        payload.PainLevel,
		Locations:        trimLabels(payload.Locations),
		Triggers:         trimLabels(payload.Triggers),
		Medications:      payload.Medications,
		Notes:            strings.TrimSpace(payload.Notes),
		JournalEntry:     strings.TrimSpace(payload.JournalEntry),
		SideEffects:      strings.TrimSpace(payload.SideEffects),
		RxTaken:          payload.RxTaken,
		FunctionalImpact: impact,
		ImpactTags:       trimLabels(payload.ImpactTags),
	}
	if err := db.InsertPainLog(c.Request.Context(), a.db, user.ID, entry, ""); err != nil {
		a.logger.Error("insert pain log failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to save pain log")
		return
	}
	a.metrics.observePainLogCreated()

	c.JSON(http.StatusCreated, painLogResponse(entry, loc))
}

func (a *App) listPainLogs(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	filter := db.PainLogFilter{NewestFirst: true, Limit: defaultPainLogListLimit}
	if raw := strings.TrimSpace(c.Query("start")); raw != "" {
		start, err := parseDate(raw, loc)
		if err != nil {
			writeError(c, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		filter.Start = start
	}
	if raw := strings.TrimSpace(c.Query("end")); raw != "" {
		end, err := parseDate(raw, loc)
		if err != nil {
			writeError(c, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		filter.End = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		writeError(c, http.StatusBadRequest, "start must not be after end")
		return
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPainLogListLimit {
			writeError(c, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = limit
	}

	entries, err := db.ListPainLogs(c.Request.Context(), a.db, user.ID, filter)
	if err != nil {
		a.logger.Error("list pain logs failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain logs")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, painLogResponse(entry, loc))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"count":    len(items),
		"timezone": loc.String(),
	})
}

func (a *App) getPainLog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	entry, found := a.loadOwnedPainLog(c, user.ID)
	if !found {
		return
	}
	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, painLogResponse(entry, loc))
}

func (a *App) updatePainLog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var payload updatePainLogRequest
	if !mustJSON(c, &payload) {
		return
	}
	entry, found := a.loadOwnedPainLog(c, user.ID)
	if !found {
		return
	}
	loc, err := a.userLocation(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if payload.LoggedAt != nil {
		parsed, valid := painlog.ParseLoggedAt(*payload.LoggedAt, loc)
		if !valid {
			writeError(c, http.StatusBadRequest, "logged_at must be RFC3339 or YYYY-MM-DDTHH:MM")
			return
		}
		entry.LoggedAt = parsed
	}
	if payload.ClearPainLevel {
		entry.PainLevel = nil
	} else if payload.PainLevel != nil {
		entry.PainLevel = payload.PainLevel
	}
	if payload.Locations != nil {
		entry.Locations = trimLabels(*payload.Locations)
	}
	if payload.Triggers != nil {
		entry.Triggers = trimLabels(*payload.Triggers)
	}
	if payload.Medications != nil {
		entry.Medications = *payload.Medications
	}
	if payload.Notes != nil {
		entry.Notes = strings.TrimSpace(*payload.Notes)
	}
	if payload.JournalEntry != nil {
		entry.JournalEntry = strings.TrimSpace(*payload.JournalEntry)
	}
	if payload.SideEffects != nil {
		entry.SideEffects = strings.TrimSpace(*payload.SideEffects)
	}
	if payload.RxTaken != nil {
		entry.RxTaken = payload.RxTaken
	}
	if payload.FunctionalImpact != nil {
		entry.FunctionalImpact, _ = painlog.NormalizeImpact(*payload.FunctionalImpact)
	}
	if payload.ImpactTags != nil {
		entry.ImpactTags = trimLabels(*payload.ImpactTags)
	}

	if err := db.UpdatePainLog(c.Request.Context(), a.db, user.ID, entry); err != nil {
		if errors.Is(err, db.ErrPainLogNotFound) {
			writeError(c, http.StatusNotFound, "Pain log not found")
			return
		}
		a.logger.Error("update pain log failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to update pain log")
		return
	}
	c.JSON(http.StatusOK, painLogResponse(entry, loc))
}

func (a *App) deletePainLog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	err := db.DeletePainLog(c.Request.Context(), a.db, user.ID, strings.TrimSpace(c.Param("id")))
	if errors.Is(err, db.ErrPainLogNotFound) {
		writeError(c, http.StatusNotFound, "Pain log not found")
		return
	}
	if err != nil {
		a.logger.Error("delete pain log failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to delete pain log")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) loadOwnedPainLog(c *gin.Context, userID string) (painlog.Entry, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, http.StatusNotFound, "Pain log not found")
		return painlog.Entry{}, false
	}
	entry, err := db.GetPainLog(c.Request.Context(), a.db, userID, id)
	if errors.Is(err, db.ErrPainLogNotFound) {
		writeError(c, http.StatusNotFound, "Pain log not found")
		return painlog.Entry{}, false
	}
	if err != nil {
		a.logger.Error("load pain log failed", zap.String("user_id", userID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain log")
		return painlog.Entry{}, false
	}
	return entry, true
}

func painLogResponse(entry painlog.Entry, loc *time.Location) gin.H {
	medications := entry.Medications
	if medications == nil {
		medications = painlog.MedicationList{}
	}
	return gin.H{
		"id":                entry.ID,
		"logged_at":         entry.LoggedAt.In(loc).Format(time.RFC3339),
		"local_date":        painlog.DayKey(entry.LoggedAt, loc),
		"pain_level":        entry.PainLevel,
		"locations":         nonNilLabels(entry.Locations),
		"triggers":          nonNilLabels(entry.Triggers),
		"medications":       medications,
		"notes":             entry.Notes,
		"journal_entry":     entry.JournalEntry,
		"side_effects":      entry.SideEffects,
		"rx_taken":          entry.RxTaken,
		"functional_impact": entry.FunctionalImpact,
		"impact_tags":       nonNilLabels(entry.ImpactTags),
	}
}

func trimLabels(input []string) []string {
	result := make([]string, 0, len(input))
	seen := make(map[string]struct{}, len(input))
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

func nonNilLabels(input []string) []string {
	if input == nil {
		return []string{}
	}
	return input
}
