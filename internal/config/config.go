package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"webintel-server/internal/routing"
)

// Config содержит конфигурацию сервера анализа веб-страниц
type Config struct {
	// Настройки HTTP сервера
	ServerPort         int           `envconfig:"SERVER_PORT" default:"8000"`
	ReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout        time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:8501,http://localhost:3000,http://localhost:4200"`

	// Настройки логирования
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Настройки AI провайдера
	AIClientType     string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://api.groq.com/openai/v1"`
	AIAPIKey         string        `envconfig:"AI_API_KEY"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`

	// Уровни моделей (tiers). Primary — меньший бюджет, лучшее качество;
	// fallback — больший бюджет, требует директивного промпта.
	PrimaryModel          string  `envconfig:"AI_MODEL" default:"llama-3.1-70b-versatile"`
	PrimaryTokenBudget    int     `envconfig:"AI_PRIMARY_TOKEN_BUDGET" default:"8000"`
	PrimaryThreshold      int     `envconfig:"AI_PRIMARY_THRESHOLD" default:"6000"`
	FallbackModel         string  `envconfig:"AI_FALLBACK_MODEL" default:"llama-3.1-8b-instant"`
	FallbackTokenBudget   int     `envconfig:"AI_FALLBACK_TOKEN_BUDGET" default:"32000"`
	FallbackThreshold     int     `envconfig:"AI_FALLBACK_THRESHOLD" default:"25000"`
	Tokenizer             string  `envconfig:"TOKENIZER" default:"heuristic"`
	GenerationMaxItems    int     `envconfig:"GENERATION_MAX_ITEMS" default:"200"`
	GenerationTemperature float64 `envconfig:"GENERATION_TEMPERATURE" default:"0.2"`
	GenerationMaxTokens   int     `envconfig:"GENERATION_MAX_TOKENS" default:"4000"`

	// Настройки пайплайна
	OutputDir    string        `envconfig:"OUTPUT_DIR" default:"output"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	ChunkSize    int           `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int           `envconfig:"CHUNK_OVERLAP" default:"100"`
	MaxJobs      int           `envconfig:"MAX_JOBS" default:"10"`
	JobRetention time.Duration `envconfig:"JOB_RETENTION" default:"24h"`
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		if cfg.AIAPIKey == "" {
			return nil, errors.New("AI_API_KEY must be set for the openai client type")
		}
	case "ollama":
		// Локальный провайдер, ключ не требуется.
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: %q", cfg.AIClientType)
	}

	return &cfg, nil
}

// Tiers собирает неизменяемую упорядоченную таблицу уровней моделей.
func (c *Config) Tiers() ([]routing.Tier, error) {
	tiers := []routing.Tier{
		{
			Name:             c.PrimaryModel,
			TokenBudget:      c.PrimaryTokenBudget,
			RoutingThreshold: c.PrimaryThreshold,
			PromptStyle:      routing.StyleOpenEnded,
		},
		{
			Name:             c.FallbackModel,
			TokenBudget:      c.FallbackTokenBudget,
			RoutingThreshold: c.FallbackThreshold,
			PromptStyle:      routing.StyleDirective,
		},
	}
	if tiers[0].TokenBudget >= tiers[1].TokenBudget {
		return nil, errors.New("fallback tier must have a larger token budget than the primary tier")
	}
	return tiers, nil
}

// MaskedAPIKey возвращает ключ API с маской для логирования.
func (c *Config) MaskedAPIKey() string {
	if c.AIAPIKey == "" {
		return "[not set]"
	}
	if len(c.AIAPIKey) <= 8 {
		return "********"
	}
	return c.AIAPIKey[:4] + "****" + c.AIAPIKey[len(c.AIAPIKey)-4:]
}
