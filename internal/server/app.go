package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"paintrack/backend/internal/config"
	"paintrack/backend/internal/logging"
)

type App struct {
	cfg     config.Config
	db      *pgxpool.Pool
	logger  *zap.Logger
	metrics *Metrics
	ai      AIClient
	now     func() time.Time
}

type AuthUser struct {
	ID          string
	Provider    string
	ProviderUID *string
	Phone       *string
	Name        string
}

func New(cfg config.Config, db *pgxpool.Pool, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerValidation()
	metrics := NewMetrics()
	return &App{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		metrics: metrics,
		ai:      NewAIClient(cfg, metrics),
		now:     time.Now,
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(logging.GinLogger(a.logger), gin.Recovery(), a.metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)
	router.GET("/metrics", a.metrics.Handler())

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.POST("/pain-logs", a.createPainLog)
	api.GET("/pain-logs", a.listPainLogs)
	api.GET("/pain-logs/:id", a.getPainLog)
	api.PATCH("/pain-logs/:id", a.updatePainLog)
	api.DELETE("/pain-logs/:id", a.deletePainLog)
	api.GET("/charts/timeline", a.timelineChart)
	api.GET("/charts/weekday", a.weekdayChart)
	api.GET("/charts/time-of-day", a.timeOfDayChart)
	api.GET("/charts/medications", a.medicationChart)
	api.GET("/calendar", a.calendarMonth)
	api.GET("/insights/patterns", a.patternInsights)
	api.GET("/quick/today-summary", a.quickTodaySummary)
	api.POST("/chat", a.chatQuery)
	api.GET("/chat/messages", a.getChatMessages)
	api.GET("/settings/me", a.getMySettings)
	api.PATCH("/settings/me", a.upsertMySettings)
	api.GET("/export/pain-logs.csv", a.exportPainLogsCSV)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "paintrack-api",
	})
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, "Token subject missing")
			return
		}

		user, err := a.getOrCreateUser(c.Request.Context(), sub, claims)
		if err != nil {
			if !errors.Is(err, errUserNotFound) {
				a.logger.Error("auth user lookup failed", zap.String("user_id", sub), zap.Error(err))
			}
			writeError(c, http.StatusUnauthorized, "User not found")
			return
		}

		c.Set("authUser", user)
		c.Set(logging.UserIDKey, user.ID)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func providerFromClaim(raw any) string {
	if s, ok := raw.(string); ok {
		switch s {
		case "apple", "google", "phone", "email":
			return s
		}
	}
	return "phone"
}

func toOptionalString(raw any) *string {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" {
			return &trimmed
		}
	}
	return nil
}

var errUserNotFound = errors.New("user not found")

func (a *App) getOrCreateUser(ctx context.Context, userID string, claims jwt.MapClaims) (AuthUser, error) {
	user := AuthUser{}
	err := a.db.QueryRow(
		ctx,
		`SELECT id, provider, "providerUid", phone, name FROM "User" WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Provider, &user.ProviderUID, &user.Phone, &user.Name)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, err
	}
	if !a.cfg.AuthAutoCreateUser {
		return AuthUser{}, errUserNotFound
	}

	user = AuthUser{
		ID:          userID,
		Provider:    providerFromClaim(claims["provider"]),
		ProviderUID: toOptionalString(claims["provider_uid"]),
		Phone:       toOptionalString(claims["phone"]),
	}
	if rawName, ok := claims["name"].(string); ok {
		user.Name = strings.TrimSpace(rawName)
	}
	if user.Name == "" {
		user.Name = fmt.Sprintf("user-%s", truncate(userID, 8))
	}

	if _, err := a.db.Exec(
		ctx,
		`INSERT INTO "User" (id, provider, "providerUid", phone, name, "createdAt")
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		user.ID,
		user.Provider,
		user.ProviderUID,
		user.Phone,
		user.Name,
	); err != nil {
		return AuthUser{}, err
	}
	return user, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

// requireUser writes 401 and returns false when the middleware did not run.
func requireUser(c *gin.Context) (AuthUser, bool) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
	}
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, validationDetail(err))
		return false
	}
	return true
}

// userLocation is the zone every aggregation for userID runs in: the saved
// setting when it loads, else DEFAULT_TIMEZONE, else UTC.
func (a *App) userLocation(ctx context.Context, userID string) (*time.Location, error) {
	settings, err := loadUserSettings(ctx, a.db, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return a.locationFor(userID, settings), nil
}

func (a *App) locationFor(userID string, settings userSettings) *time.Location {
	if settings.Timezone != "" {
		if loc, err := time.LoadLocation(settings.Timezone); err == nil {
			return loc
		}
		a.logger.Warn("stored timezone does not load", zap.String("user_id", userID), zap.String("timezone", settings.Timezone))
	}
	return a.defaultLocation()
}

func (a *App) defaultLocation() *time.Location {
	loc, err := a.cfg.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(value), loc)
}

func extractNumberFromMap(data map[string]any, keys ...string) float64 {
	if data == nil {
		return 0
	}
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case json.Number:
			f, err := v.Float64()
			if err == nil {
				return f
			}
		case string:
			var parsed float64
			_, err := fmt.Sscanf(v, "%f", &parsed)
			if err == nil {
				return parsed
			}
		}
	}
	return 0
}
