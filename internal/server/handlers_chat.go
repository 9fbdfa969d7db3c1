package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"paintrack/backend/internal/db"
	"paintrack/backend/internal/painlog"
)

const (
	chatConversationTurnLimit = 20
	chatTurnRuneMax           = 1200
	chatMessageListDefault    = 50
	chatMessageListMax        = 200
)

type chatMessageRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     *string   `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *App) chatQuery(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var payload chatRequest
	if !mustJSON(c, &payload) {
		return
	}
	question := strings.TrimSpace(payload.Message)
	if question == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	ctx := c.Request.Context()
	settings, err := loadUserSettings(ctx, a.db, user.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	loc := a.locationFor(user.ID, settings)
	tone := a.resolveTone(settings)
	if strings.TrimSpace(payload.Tone) != "" {
		tone = normalizeTone(payload.Tone)
	}

	now := a.now()
	window, err := painlog.ResolveRange(painlog.ViewCustom, now, loc, now.AddDate(0, 0, -(a.historyDays()-1)), now)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to resolve chat window")
		return
	}
	entries, err := db.ListPainLogs(ctx, a.db, user.ID, db.PainLogFilter{Start: window.Start, End: window.End})
	if err != nil {
		a.logger.Error("load chat context failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pain logs")
		return
	}
	summary := painlog.AnalyzePatterns(entries, loc, painlog.DefaultTopN)

	turns, err := a.loadRecentTurns(ctx, user.ID, chatConversationTurnLimit)
	if err != nil {
		a.logger.Error("load chat history failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load chat history")
		return
	}

	resp, err := a.ai.Query(ctx, AIModelRequest{
		Model:        a.cfg.OpenAIModel,
		SystemPrompt: buildChatSystemPrompt(tone, summary, a.historyDays(), now.In(loc)),
		Conversation: turns,
		UserPrompt:   question,
	})
	if err != nil {
		a.logger.Warn("chat query failed", zap.String("user_id", user.ID), zap.String("outcome", aiOutcome(err)), zap.Error(err))
		a.writeChatExecutionError(c, err)
		return
	}
	answer := sanitizeUserFacingAnswer(resp.Answer)
	if answer == "" {
		a.writeChatExecutionError(c, ErrAIEmptyAnswer)
		return
	}

	assistantID, err := a.saveChatExchange(ctx, user.ID, question, answer, resp.Model)
	if err != nil {
		a.logger.Error("save chat exchange failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to save chat messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message_id":     assistantID,
		"answer":         answer,
		"model":          resp.Model,
		"usage":          usageMap(resp.Usage),
		"tone":           tone,
		"summary_lines":  summary.PromptLines(),
		"reference_text": fmt.Sprintf("Based on your pain logs from the last %d days.", a.historyDays()),
	})
}

func (a *App) getChatMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	limit := chatMessageListDefault
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > chatMessageListMax {
			writeError(c, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	messages, err := loadChatMessages(c.Request.Context(), a.db, user.ID, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load chat messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (a *App) historyDays() int {
	if a.cfg.ChatHistoryDays < 1 {
		return 30
	}
	return a.cfg.ChatHistoryDays
}

// loadChatMessages returns the newest limit messages in chronological order.
func loadChatMessages(ctx context.Context, q db.Querier, userID string, limit int) ([]chatMessageRecord, error) {
	rows, err := q.Query(
		ctx,
		`SELECT id, role, content, model, "createdAt" FROM (
		   SELECT id, role, content, model, "createdAt"
		   FROM "ChatMessage"
		   WHERE "userId" = $1
		   ORDER BY "createdAt" DESC, id DESC
		   LIMIT $2
		 ) recent
		 ORDER BY "createdAt" ASC, id ASC`,
		userID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]chatMessageRecord, 0, limit)
	for rows.Next() {
		var record chatMessageRecord
		if err := rows.Scan(&record.ID, &record.Role, &record.Content, &record.Model, &record.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, record)
	}
	return messages, rows.Err()
}

func (a *App) loadRecentTurns(ctx context.Context, userID string, limit int) ([]ChatTurn, error) {
	messages, err := loadChatMessages(ctx, a.db, userID, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]ChatTurn, 0, len(messages))
	for _, message := range messages {
		turns = append(turns, ChatTurn{
			Role:    message.Role,
			Content: truncateRunes(message.Content, chatTurnRuneMax),
		})
	}
	return turns, nil
}

// saveChatExchange stores the question and answer together so history never
// holds an unanswered turn.
func (a *App) saveChatExchange(ctx context.Context, userID, question, answer, model string) (string, error) {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	now := a.now().UTC()
	assistantID := uuid.NewString()
	if _, err := tx.Exec(
		ctx,
		`INSERT INTO "ChatMessage" (id, "userId", role, content, model, "createdAt")
		 VALUES ($1, $2, 'user', $3, NULL, $4), ($5, $2, 'assistant', $6, $7, $8)`,
		uuid.NewString(),
		userID,
		question,
		now,
		assistantID,
		answer,
		model,
		now.Add(time.Millisecond),
	); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return assistantID, nil
}

func buildChatSystemPrompt(tone string, summary painlog.PatternSummary, days int, now time.Time) string {
	lines := []string{
		"You are a supportive assistant inside a pain-tracking journal.",
		"Answer using the user's own logs below. Say so when the logs do not cover the question.",
		"You are not a doctor. Do not diagnose or change prescriptions; suggest talking to a clinician for medical decisions.",
		"If the user describes chest pain, sudden weakness, numbness or trouble breathing, tell them to seek emergency care first.",
		"Keep answers under 150 words. Use plain text without markdown headings.",
		toneInstruction(tone),
		"",
		fmt.Sprintf("Current local time: %s (%s)", now.Format("2006-01-02 15:04"), now.Location().String()),
		fmt.Sprintf("Pattern summary for the last %d days:", days),
	}
	for _, line := range summary.PromptLines() {
		lines = append(lines, "- "+line)
	}
	return strings.Join(lines, "\n")
}

func toneInstruction(tone string) string {
	switch tone {
	case "neutral":
		return "Tone: calm and factual."
	case "brief":
		return "Tone: brief. Two or three sentences at most."
	case "clinical":
		return "Tone: precise and clinical, using medical terms where they help."
	}
	return "Tone: warm and encouraging, acknowledging how the user feels."
}

func usageMap(usage AIUsage) gin.H {
	return gin.H{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
}

func (a *App) writeChatExecutionError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	var providerErr *AIProviderError
	switch {
	case errors.Is(err, ErrAINotConfigured):
		writeError(c, http.StatusServiceUnavailable, "AI provider is not configured: set OPENAI_API_KEY")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		writeError(c, http.StatusServiceUnavailable, "AI provider temporarily unavailable; try again shortly")
	case isTimeout(err):
		writeError(c, http.StatusBadGateway, "AI provider request timed out")
	case errors.As(err, &providerErr):
		writeError(c, http.StatusBadGateway, "AI provider request failed")
	case errors.Is(err, ErrAIEmptyAnswer):
		writeError(c, http.StatusBadGateway, "AI provider returned empty answer")
	case errors.Is(err, ErrAIIncomplete):
		writeError(c, http.StatusBadGateway, "AI provider response incomplete; increase AI_MAX_OUTPUT_TOKENS")
	default:
		a.logger.Error("chat query failed unclassified", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to execute chat query")
	}
}

func truncateRunes(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || max <= 0 {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) <= max {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// sanitizeUserFacingAnswer drops markdown heading markers and blank runs.
func sanitizeUserFacingAnswer(answer string) string {
	lines := splitNonEmptyLines(answer)
	for i, line := range lines {
		lines[i] = strings.TrimSpace(strings.TrimLeft(line, "#"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
