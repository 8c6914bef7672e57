package routing

import (
	"errors"
	"fmt"

	"webintel-server/internal/model"
	"webintel-server/internal/token"
)

// PromptStyle selects which prompt variant a tier requires.
type PromptStyle string

const (
	// StyleOpenEnded relies on model capability with minimal scaffolding.
	StyleOpenEnded PromptStyle = "open-ended"
	// StyleDirective uses explicit numbered steps and an output example,
	// compensating for a less steerable fallback model.
	StyleDirective PromptStyle = "directive"
)

// Tier describes one callable model: its provider-advertised token budget,
// the conservative routing threshold below that budget, and the prompt style
// the model requires. Tiers are immutable process-wide configuration.
type Tier struct {
	Name             string
	TokenBudget      int
	RoutingThreshold int
	PromptStyle      PromptStyle
}

// Table is the immutable ordered tier list, ascending by token budget.
// The first entry is the primary tier, the last is the largest fallback.
type Table struct {
	tiers []Tier
}

// NewTable validates and freezes the tier list.
func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, errors.New("at least one model tier must be configured")
	}
	for i, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("tier %d has no model name", i)
		}
		if t.RoutingThreshold <= 0 || t.TokenBudget <= 0 {
			return nil, fmt.Errorf("tier %q has non-positive budget or threshold", t.Name)
		}
		if t.RoutingThreshold > t.TokenBudget {
			return nil, fmt.Errorf("tier %q routing threshold %d exceeds its token budget %d",
				t.Name, t.RoutingThreshold, t.TokenBudget)
		}
		if i > 0 && t.TokenBudget <= tiers[i-1].TokenBudget {
			return nil, fmt.Errorf("tiers must be ordered by increasing token budget, %q is not", t.Name)
		}
	}
	frozen := make([]Tier, len(tiers))
	copy(frozen, tiers)
	return &Table{tiers: frozen}, nil
}

// Tiers returns a copy of the ordered tier list.
func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Primary returns the smallest-budget tier.
func (t *Table) Primary() Tier { return t.tiers[0] }

// Largest returns the largest-budget tier.
func (t *Table) Largest() Tier { return t.tiers[len(t.tiers)-1] }

// ByName looks a tier up by model name.
func (t *Table) ByName(name string) (Tier, bool) {
	for _, tier := range t.tiers {
		if tier.Name == name {
			return tier, true
		}
	}
	return Tier{}, false
}

// From returns the tier with the given name and every larger tier after it,
// in ascending order. Used by the engine as the escalation sequence.
func (t *Table) From(name string) []Tier {
	for i, tier := range t.tiers {
		if tier.Name == name {
			out := make([]Tier, len(t.tiers)-i)
			copy(out, t.tiers[i:])
			return out
		}
	}
	return nil
}

// Decision is the routing outcome: the tier to call and, when Truncate is
// set, the maximum number of context characters that keeps the re-estimated
// cost under the tier's routing threshold.
type Decision struct {
	Tier             Tier
	Truncate         bool
	ContextCharLimit int
}

// Route selects a tier for the combined request cost (context + query +
// instructions). Tiers are evaluated in ascending order; the first tier whose
// routing threshold accommodates the combined estimate wins. When every
// threshold is exceeded, the largest tier is selected with a context cutoff
// computed so the truncated context re-estimates under its threshold.
// Returns ErrRoutingExhausted when the overhead alone (query + instructions,
// with no context at all) exceeds the largest threshold.
func Route(est token.Estimator, contextText, overheadText string, table *Table) (Decision, error) {
	combined := est.Estimate(contextText) + est.Estimate(overheadText)
	for _, tier := range table.tiers {
		if combined <= tier.RoutingThreshold {
			return Decision{Tier: tier}, nil
		}
	}

	largest := table.Largest()
	budget := largest.RoutingThreshold - est.Estimate(overheadText)
	if budget <= 0 {
		return Decision{}, fmt.Errorf("%w: overhead alone estimates above the largest threshold %d",
			model.ErrRoutingExhausted, largest.RoutingThreshold)
	}

	// Binary search the longest context prefix that fits. Relies on the
	// estimator's prefix monotonicity.
	lo, hi := 0, len(contextText)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est.Estimate(contextText[:mid]) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return Decision{}, fmt.Errorf("%w: no context prefix fits under threshold %d",
			model.ErrRoutingExhausted, largest.RoutingThreshold)
	}
	return Decision{Tier: largest, Truncate: true, ContextCharLimit: lo}, nil
}
