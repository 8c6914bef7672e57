package model

import (
	"errors"
	"fmt"
	"strings"
)

// Application-wide standard errors
var (
	// Common Resource Errors
	ErrNotFound        = errors.New("resource not found") // General not found
	ErrJobLimitReached = errors.New("maximum number of active jobs reached")
	ErrJobNotCompleted = errors.New("job is not completed yet")

	// Routing Errors
	ErrRoutingExhausted = errors.New("no model tier can accommodate the request, even with truncation")

	// Provider Errors
	ErrProviderTransport = errors.New("provider transport error")
	ErrProviderSize      = errors.New("provider rejected request due to size")
	ErrEmptyResponse     = errors.New("provider returned an empty response")

	// Parsing Errors
	ErrParseFailed = errors.New("failed to parse model output")

	// Collaborator Errors
	ErrFetchFailed = errors.New("failed to fetch page content")
	ErrNoChunks    = errors.New("no chunks produced from the page content")
)

// TierAttempt records one provider invocation for diagnosis.
type TierAttempt struct {
	Tier    string
	Attempt int
	Reason  string
}

// GenerationError reports that every tier/attempt combination was exhausted
// without a usable result. It carries the sequence of attempts and the last
// underlying cause.
type GenerationError struct {
	Attempts []TierAttempt
	Cause    error
}

func (e *GenerationError) Error() string {
	tiers := make([]string, 0, len(e.Attempts))
	seen := make(map[string]bool, len(e.Attempts))
	for _, a := range e.Attempts {
		if !seen[a.Tier] {
			seen[a.Tier] = true
			tiers = append(tiers, a.Tier)
		}
	}
	return fmt.Sprintf("generation failed after %d attempts across tiers [%s]: %v",
		len(e.Attempts), strings.Join(tiers, ", "), e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }
