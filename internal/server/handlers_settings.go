package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"paintrack/backend/internal/db"
)

type userSettings struct {
	Timezone string
	Tone     string
}

func (a *App) getMySettings(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	settings, err := loadUserSettings(c.Request.Context(), a.db, user.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, a.buildSettingsResponse(settings))
}

func (a *App) upsertMySettings(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload updateMySettingsRequest
	if !mustJSON(c, &payload) {
		return
	}

	settings, err := loadUserSettings(c.Request.Context(), a.db, user.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	if payload.Timezone != nil {
		timezone := strings.TrimSpace(*payload.Timezone)
		if timezone != "" {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				writeError(c, http.StatusBadRequest, "timezone must be an IANA timezone name")
				return
			}
			timezone = loc.String()
		}
		settings.Timezone = timezone
	}
	if payload.Tone != nil {
		settings.Tone = normalizeTone(*payload.Tone)
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO "UserSettings" (id, "userId", timezone, tone, "updatedAt")
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW())
		 ON CONFLICT ("userId")
		 DO UPDATE SET timezone = EXCLUDED.timezone, tone = EXCLUDED.tone, "updatedAt" = NOW()`,
		uuid.NewString(),
		user.ID,
		settings.Timezone,
		settings.Tone,
	); err != nil {
		a.logger.Error("save settings failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	c.JSON(http.StatusOK, a.buildSettingsResponse(settings))
}

// loadUserSettings returns pgx.ErrNoRows alongside zero settings when the
// user never saved any.
func loadUserSettings(ctx context.Context, q db.Querier, userID string) (userSettings, error) {
	var timezone, tone *string
	err := q.QueryRow(
		ctx,
		`SELECT timezone, tone FROM "UserSettings" WHERE "userId" = $1 LIMIT 1`,
		userID,
	).Scan(&timezone, &tone)
	if err != nil {
		return userSettings{}, err
	}
	settings := userSettings{}
	if timezone != nil {
		settings.Timezone = strings.TrimSpace(*timezone)
	}
	if tone != nil {
		settings.Tone = strings.TrimSpace(*tone)
	}
	return settings, nil
}

func (a *App) resolveTone(settings userSettings) string {
	if settings.Tone != "" {
		return normalizeTone(settings.Tone)
	}
	return normalizeTone(a.cfg.DefaultTone)
}

func (a *App) buildSettingsResponse(settings userSettings) gin.H {
	timezone := settings.Timezone
	source := "user"
	if timezone == "" {
		timezone = a.defaultLocation().String()
		source = "default"
	}
	return gin.H{
		"timezone":        timezone,
		"timezone_source": source,
		"tone":            a.resolveTone(settings),
	}
}
