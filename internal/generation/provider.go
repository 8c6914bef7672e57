package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"
	openaigo "github.com/sashabaranov/go-openai"

	"webintel-server/internal/config"
	"webintel-server/internal/model"
)

// AIClient is the minimal provider surface the engine depends on. The model
// name is per-call because the engine escalates across tiers.
type AIClient interface {
	GenerateText(ctx context.Context, modelName, systemPrompt, userPrompt string) (string, error)
}

// sizeErrorMarkers are substrings providers use to signal that the request
// exceeded the model's context window.
var sizeErrorMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"reduce the length",
	"request too large",
	"tokens per minute",
}

// classifyProviderError maps a raw provider error onto the engine's two
// recovery paths: size errors escalate to the next tier immediately,
// transport errors are retried on the same tier.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusRequestEntityTooLarge {
			return fmt.Errorf("%w: %v", model.ErrProviderSize, err)
		}
		if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
			return fmt.Errorf("%w: %v", model.ErrProviderSize, err)
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range sizeErrorMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", model.ErrProviderSize, err)
		}
	}
	return fmt.Errorf("%w: %v", model.ErrProviderTransport, err)
}

// --- OpenAI Client Implementation ---

// openAIClient реализует AIClient с использованием go-openai
type openAIClient struct {
	client      *openaigo.Client
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

func (c *openAIClient) GenerateText(ctx context.Context, modelName, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", fmt.Errorf("%w: user prompt is empty", model.ErrProviderTransport)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openaigo.ChatMessageRoleUser, Content: userPrompt},
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	log.Ctx(ctx).Debug().
		Str("model", modelName).
		Int("systemBytes", len(systemPrompt)).
		Int("userBytes", len(userPrompt)).
		Msg("Отправка запроса к AI")

	resp, err := c.client.CreateChatCompletion(reqCtx, openaigo.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	})

	duration := time.Since(startTime)

	if err != nil {
		classified := classifyProviderError(err)
		log.Ctx(ctx).Error().Err(err).Str("model", modelName).Dur("duration", duration).Msg("Ошибка от AI API")
		observeRequest(modelName, statusFromError(classified), duration)
		return "", classified
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Ctx(ctx).Warn().Str("model", modelName).Dur("duration", duration).Msg("AI API вернул пустой ответ")
		observeRequest(modelName, "error_empty_response", duration)
		return "", model.ErrEmptyResponse
	}

	observeRequest(modelName, "success", duration)
	if resp.Usage.TotalTokens > 0 {
		observeUsage(modelName, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	generated := resp.Choices[0].Message.Content
	log.Ctx(ctx).Debug().
		Str("model", modelName).
		Dur("duration", duration).
		Int("responseChars", len(generated)).
		Msg("Ответ от AI API получен")
	return generated, nil
}

// --- Ollama Client Implementation ---

// ollamaClient реализует AIClient с использованием ollama/api
type ollamaClient struct {
	client      *api.Client
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

func newOllamaClient(cfg *config.Config) (AIClient, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	return &ollamaClient{
		client:      api.NewClient(parsedURL, httpClient),
		timeout:     cfg.AITimeout,
		temperature: cfg.GenerationTemperature,
		maxTokens:   cfg.GenerationMaxTokens,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, modelName, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", fmt.Errorf("%w: user prompt is empty", model.ErrProviderTransport)
	}

	stream := false
	req := &api.ChatRequest{
		Model: modelName,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(reqCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		classified := classifyProviderError(err)
		log.Ctx(ctx).Error().Err(err).Str("model", modelName).Dur("duration", duration).Msg("Ошибка от Ollama API")
		observeRequest(modelName, statusFromError(classified), duration)
		return "", classified
	}

	if resp.Message.Content == "" {
		log.Ctx(ctx).Warn().Str("model", modelName).Dur("duration", duration).Msg("Ollama API вернул пустой ответ")
		observeRequest(modelName, "error_empty_response", duration)
		return "", model.ErrEmptyResponse
	}

	observeRequest(modelName, "success", duration)
	if resp.PromptEvalCount+resp.EvalCount > 0 {
		observeUsage(modelName, resp.PromptEvalCount, resp.EvalCount)
	}

	return resp.Message.Content, nil
}

func statusFromError(err error) string {
	if errors.Is(err, model.ErrProviderSize) {
		return "error_size"
	}
	return "error_transport"
}

// --- Factory Function ---

// NewAIClient создает новый клиент для взаимодействия с AI в зависимости от конфигурации
func NewAIClient(cfg *config.Config) (AIClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		return &openAIClient{
			client:      openaigo.NewClientWithConfig(openaiConfig),
			timeout:     cfg.AITimeout,
			temperature: cfg.GenerationTemperature,
			maxTokens:   cfg.GenerationMaxTokens,
		}, nil
	case "ollama":
		return newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}
