package model

import (
	"errors"
	"fmt"
	"strings"
)

// Значения по умолчанию для опций пайплайна
const (
	DefaultQuery = "Extract Golden Questions and Expected Responses that users " +
		"commonly ask about this product/service for comprehensive bot testing"
	DefaultOutputFilename = "golden_qna.xlsx"
	DefaultTopK           = 30
	DefaultScrollPages    = 5
	DefaultMaxDepth       = 1
	DefaultMaxPages       = 20
	DefaultTCVariations   = 20
	DefaultTCNegatives    = 12
)

// PipelineRequest — замкнутый набор опций, принимаемых POST /api/pipeline/start.
// Неизвестные ключи отклоняются на уровне декодера (DisallowUnknownFields).
type PipelineRequest struct {
	URL            string `json:"url"`
	Query          string `json:"query"`
	OutputFilename string `json:"output_filename"`
	TopK           int    `json:"k"`
	ScrollPages    int    `json:"scroll_pages"`
	Crawl          bool   `json:"crawl"`
	MaxDepth       int    `json:"max_depth"`
	MaxPages       int    `json:"max_pages"`
	SameDomainOnly *bool  `json:"same_domain_only"`
	WithTestCases  *bool  `json:"with_test_cases"`
	TestCasesLLM   bool   `json:"test_cases_llm"`
	TCVariations   int    `json:"tc_variations"`
	TCNegatives    int    `json:"tc_negatives"`
	Model          string `json:"model"`
}

// ApplyDefaults заполняет незаданные опции значениями по умолчанию.
func (r *PipelineRequest) ApplyDefaults() {
	if strings.TrimSpace(r.Query) == "" {
		r.Query = DefaultQuery
	}
	if strings.TrimSpace(r.OutputFilename) == "" {
		r.OutputFilename = DefaultOutputFilename
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.ScrollPages <= 0 {
		r.ScrollPages = DefaultScrollPages
	}
	if r.MaxDepth <= 0 {
		r.MaxDepth = DefaultMaxDepth
	}
	if r.MaxPages <= 0 {
		r.MaxPages = DefaultMaxPages
	}
	if r.SameDomainOnly == nil {
		v := true
		r.SameDomainOnly = &v
	}
	if r.WithTestCases == nil {
		v := true
		r.WithTestCases = &v
	}
	if r.TCVariations <= 0 {
		r.TCVariations = DefaultTCVariations
	}
	if r.TCNegatives <= 0 {
		r.TCNegatives = DefaultTCNegatives
	}
}

// Validate проверяет обязательные поля запроса.
func (r *PipelineRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
		return fmt.Errorf("url must start with http:// or https://, got %q", r.URL)
	}
	return nil
}

// QAItem — одна извлечённая пара вопрос/ожидаемый ответ.
type QAItem struct {
	Question         string `json:"question"`
	ExpectedResponse string `json:"expected_response"`
}

// TestCase — структурированный тест-кейс для одного вопроса (лист "TestCases").
type TestCase struct {
	ID               int
	Question         string
	ExpectedResponse string
	TestSteps        string
	Variations       string
	NegativeCase     string
	EntitiesSlots    string
	Notes            string
}

// GenerationResult — результат работы генератора: извлечённые пары,
// фактически использованная модель и оценка токенов на момент вызова.
type GenerationResult struct {
	Items           []QAItem
	ModelUsed       string
	EstimatedTokens int
}
