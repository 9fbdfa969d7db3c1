package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"paintrack/backend/internal/config"
)

var (
	ErrAINotConfigured = errors.New("AI provider is not configured")
	ErrAIEmptyAnswer   = errors.New("AI response answer is empty")
	ErrAIIncomplete    = errors.New("AI response incomplete due max_output_tokens")
)

// AIProviderError is a non-2xx answer from the provider.
type AIProviderError struct {
	StatusCode int
	Body       string
}

func (e *AIProviderError) Error() string {
	return fmt.Sprintf("openai responses error (%d): %s", e.StatusCode, e.Body)
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AIModelRequest struct {
	Model        string
	SystemPrompt string
	Conversation []ChatTurn
	UserPrompt   string
}

type AIModelResponse struct {
	Answer string
	Model  string
	Usage  AIUsage
}

type AIClient interface {
	Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error)
}

// NewAIClient picks the provider for cfg. Local environments without an API
// key get the mock client so the chat route still answers.
func NewAIClient(cfg config.Config, metrics *Metrics) AIClient {
	var client AIClient
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && cfg.IsLocal() {
		client = MockAIClient{Model: cfg.OpenAIModel}
	} else {
		client = NewOpenAIResponsesClient(cfg)
	}
	return NewBreakerAIClient(client, cfg.AIBreakerFailures, time.Duration(cfg.AIBreakerCooldownSeconds)*time.Second, metrics)
}

type MockAIClient struct {
	Model string
}

func (m MockAIClient) Query(_ context.Context, req AIModelRequest) (AIModelResponse, error) {
	question := strings.TrimSpace(req.UserPrompt)
	if question == "" {
		question = "No question provided."
	}
	lowered := strings.ToLower(question)

	answer := "Mock response: " + question
	if strings.Contains(lowered, "medication") || strings.Contains(lowered, "ibuprofen") {
		answer = "Mock response: your logs pair each dose with the next entry two to four hours later; see the medication chart for the averages."
	}
	if strings.Contains(lowered, "chest") || strings.Contains(lowered, "numb") {
		answer = "Mock response: sudden chest pain or numbness needs urgent care. Please contact emergency services."
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(m.Model)
	}
	if model == "" {
		model = "gpt-5-mini"
	}
	return AIModelResponse{
		Answer: answer,
		Model:  model,
		Usage: AIUsage{
			PromptTokens:     120,
			CompletionTokens: 80,
			TotalTokens:      200,
		},
	}, nil
}

type OpenAIResponsesClient struct {
	apiKey          string
	model           string
	maxOutputTokens int
	client          *resty.Client
}

func NewOpenAIResponsesClient(cfg config.Config) *OpenAIResponsesClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	return newOpenAIResponsesClient(
		cfg.OpenAIAPIKey,
		cfg.OpenAIBaseURL,
		cfg.OpenAIModel,
		cfg.AIMaxOutputTokens,
		time.Duration(timeoutSeconds)*time.Second,
	)
}

func newOpenAIResponsesClient(apiKey, baseURL, model string, maxOutputTokens int, timeout time.Duration) *OpenAIResponsesClient {
	apiKey = strings.TrimSpace(apiKey)
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &OpenAIResponsesClient{
		apiKey:          apiKey,
		model:           strings.TrimSpace(model),
		maxOutputTokens: maxOutputTokens,
		client:          client,
	}
}

type responsesInputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesInputBlock struct {
	Role    string               `json:"role"`
	Content []responsesInputText `json:"content"`
}

func buildResponsesInput(req AIModelRequest) []responsesInputBlock {
	input := make([]responsesInputBlock, 0, len(req.Conversation)+2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		input = append(input, responsesInputBlock{
			Role:    "system",
			Content: []responsesInputText{{Type: "input_text", Text: system}},
		})
	}
	for _, turn := range req.Conversation {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		contentType := "input_text"
		if role == "assistant" {
			contentType = "output_text"
		}
		input = append(input, responsesInputBlock{
			Role:    role,
			Content: []responsesInputText{{Type: contentType, Text: content}},
		})
	}
	if userPrompt := strings.TrimSpace(req.UserPrompt); userPrompt != "" {
		input = append(input, responsesInputBlock{
			Role:    "user",
			Content: []responsesInputText{{Type: "input_text", Text: userPrompt}},
		})
	}
	return input
}

// Query sends one Responses API call. Failures are returned as-is; the
// caller decides whether to try again.
func (c *OpenAIResponsesClient) Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error) {
	if c.apiKey == "" || c.client.BaseURL == "" || c.model == "" {
		return AIModelResponse{}, ErrAINotConfigured
	}
	requestModel := strings.TrimSpace(req.Model)
	if requestModel == "" {
		requestModel = c.model
	}

	input := buildResponsesInput(req)
	if len(input) == 0 {
		return AIModelResponse{}, errors.New("AI request input is empty")
	}
	maxTokens := c.maxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 600
	}
	payload := map[string]any{
		"model":             requestModel,
		"input":             input,
		"max_output_tokens": maxTokens,
		"reasoning":         map[string]any{"effort": "low"},
		"text":              map[string]any{"verbosity": "low"},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/responses")
	if err != nil {
		return AIModelResponse{}, fmt.Errorf("openai request: %w", err)
	}
	if !resp.IsSuccess() {
		return AIModelResponse{}, &AIProviderError{
			StatusCode: resp.StatusCode(),
			Body:       truncateForLog(resp.String(), 600),
		}
	}

	parsed := parseJSONMap(resp.Body())
	answer := extractResponseAnswer(parsed)
	if answer == "" {
		if isMaxOutputTokenIncomplete(parsed) {
			return AIModelResponse{}, ErrAIIncomplete
		}
		zap.S().Warnw("openai response had no extractable answer", "body", truncateForLog(resp.String(), 1200))
		return AIModelResponse{}, ErrAIEmptyAnswer
	}

	usageMap, _ := parsed["usage"].(map[string]any)
	usage := AIUsage{
		PromptTokens:     int(extractNumberFromMap(usageMap, "input_tokens", "prompt_tokens")),
		CompletionTokens: int(extractNumberFromMap(usageMap, "output_tokens", "completion_tokens")),
		TotalTokens:      int(extractNumberFromMap(usageMap, "total_tokens")),
	}
	if usage.TotalTokens <= 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	modelName := strings.TrimSpace(toString(parsed["model"]))
	if modelName == "" {
		modelName = requestModel
	}
	return AIModelResponse{Answer: answer, Model: modelName, Usage: usage}, nil
}

// BreakerAIClient stops calling the provider after consecutive failures and
// fails fast until the cooldown elapses.
type BreakerAIClient struct {
	next    AIClient
	breaker *gobreaker.CircuitBreaker
	metrics *Metrics
}

func NewBreakerAIClient(next AIClient, failures int, cooldown time.Duration, metrics *Metrics) *BreakerAIClient {
	if failures <= 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	threshold := uint32(failures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-responses",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrAINotConfigured) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.S().Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerAIClient{next: next, breaker: breaker, metrics: metrics}
}

func (b *BreakerAIClient) Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.next.Query(ctx, req)
	})
	b.metrics.observeAICall(aiOutcome(err))
	if err != nil {
		return AIModelResponse{}, err
	}
	return result.(AIModelResponse), nil
}

func (b *BreakerAIClient) State() gobreaker.State {
	return b.breaker.State()
}

func aiOutcome(err error) string {
	var providerErr *AIProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, ErrAINotConfigured):
		return "not_configured"
	case isTimeout(err):
		return "timeout"
	case errors.As(err, &providerErr):
		return "provider_error"
	}
	return "error"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func extractResponseAnswer(data map[string]any) string {
	if direct := strings.TrimSpace(toString(data["output_text"])); direct != "" {
		return direct
	}

	outputs, ok := data["output"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0)
	for _, item := range outputs {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		contentList, ok := block["content"].([]any)
		if !ok {
			continue
		}
		for _, contentItem := range contentList {
			contentMap, ok := contentItem.(map[string]any)
			if !ok {
				continue
			}
			contentType := strings.ToLower(strings.TrimSpace(toString(contentMap["type"])))
			if contentType != "output_text" && contentType != "text" {
				continue
			}
			if text := extractResponseTextValue(contentMap); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func extractResponseTextValue(content map[string]any) string {
	if text := strings.TrimSpace(toString(content["text"])); text != "" {
		return text
	}
	if textMap, ok := content["text"].(map[string]any); ok {
		if value := strings.TrimSpace(toString(textMap["value"])); value != "" {
			return value
		}
	}
	return strings.TrimSpace(toString(content["output_text"]))
}

func isMaxOutputTokenIncomplete(parsed map[string]any) bool {
	details, ok := parsed["incomplete_details"].(map[string]any)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(toString(details["reason"])), "max_output_tokens")
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}

func parseJSONMap(input []byte) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(input, &result); err != nil || result == nil {
		return map[string]any{}
	}
	return result
}
