package token

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator estimates the LLM token consumption of a text blob. Estimates
// must be deterministic, non-negative and cheap (no external calls).
type Estimator interface {
	Estimate(text string) int
}

// charsPerToken is the empirical divisor of the heuristic estimator. Real
// tokenizers average closer to 4 characters per token for English text, so
// dividing by 3 over-estimates and keeps requests under provider limits.
const charsPerToken = 3

// HeuristicEstimator approximates token counts from the byte length of the
// text. Intentionally conservative.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// TiktokenEstimator counts tokens with a real BPE encoding. The routing
// algorithm does not change when this estimator is selected.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator resolves the encoding for the given model name,
// falling back to cl100k_base for models tiktoken does not know about.
func NewTiktokenEstimator(modelName string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
		}
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// New selects an estimator implementation by name ("heuristic" or
// "tiktoken"). Unknown names fall back to the heuristic.
func New(kind, modelName string) (Estimator, error) {
	switch kind {
	case "tiktoken":
		return NewTiktokenEstimator(modelName)
	default:
		return HeuristicEstimator{}, nil
	}
}
