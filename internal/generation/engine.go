package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"webintel-server/internal/model"
	"webintel-server/internal/prompt"
	"webintel-server/internal/routing"
	"webintel-server/internal/token"
)

// Options bound the engine's retry and output behavior.
type Options struct {
	MaxAttempts    int
	BaseRetryDelay time.Duration
	MaxItems       int
}

// Engine turns retrieved context chunks into Q&A pairs: it routes the request
// to a model tier, calls the provider with retries, escalates to larger tiers
// on size errors or transport exhaustion, and recovers malformed output via
// the plain-text parser.
type Engine struct {
	client AIClient
	table  *routing.Table
	est    token.Estimator
	opts   Options
}

// NewEngine wires the engine. Zero option fields get safe defaults.
func NewEngine(client AIClient, table *routing.Table, est token.Estimator, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = time.Second
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 200
	}
	return &Engine{client: client, table: table, est: est, opts: opts}
}

// Generate produces Q&A pairs for the given chunks and user query.
// startModel optionally pins the initial tier; escalation still proceeds to
// larger tiers from there.
func (e *Engine) Generate(ctx context.Context, chunks []string, query, startModel string) (model.GenerationResult, error) {
	if len(chunks) == 0 {
		return model.GenerationResult{}, model.ErrNoChunks
	}

	contextText := prompt.JoinChunks(chunks)
	// The directive prompt is the longer of the two styles; estimating
	// overhead against it keeps the routing decision conservative.
	overheadText := prompt.Build(nil, query, routing.StyleDirective)

	decision, err := routing.Route(e.est, contextText, overheadText, e.table)
	if err != nil {
		return model.GenerationResult{}, err
	}
	observeRouting(decision.Tier.Name, decision.Truncate)

	estimated := e.est.Estimate(contextText) + e.est.Estimate(overheadText)

	if decision.Truncate {
		chunks = truncateChunks(chunks, decision.ContextCharLimit)
		contextText = prompt.JoinChunks(chunks)
		log.Ctx(ctx).Warn().
			Str("tier", decision.Tier.Name).
			Int("charLimit", decision.ContextCharLimit).
			Int("chunksKept", len(chunks)).
			Msg("Context truncated to fit the largest tier")
	}

	// An explicit model override wins over the routing decision. Starting
	// below the routed tier is safe: a size rejection escalates anyway.
	escalation := e.table.From(decision.Tier.Name)
	if startModel != "" {
		if pinned := e.table.From(startModel); pinned != nil {
			escalation = pinned
		}
	}

	var attempts []model.TierAttempt
	var lastErr error

	for tierIdx, tier := range escalation {
		userPrompt := prompt.Build(chunks, query, tier.PromptStyle)
		systemPrompt := prompt.SystemMessage(tier.PromptStyle)

		escalate := false
		for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
			raw, err := e.client.GenerateText(ctx, tier.Name, systemPrompt, userPrompt)
			if err != nil {
				attempts = append(attempts, model.TierAttempt{Tier: tier.Name, Attempt: attempt, Reason: err.Error()})
				lastErr = err

				if errors.Is(err, model.ErrProviderSize) {
					// Retrying the same oversized request cannot succeed.
					log.Ctx(ctx).Warn().Str("tier", tier.Name).Msg("Size error, escalating to the next tier")
					observeEscalation(tier.Name, "size")
					escalate = true
					break
				}
				if ctx.Err() != nil {
					return model.GenerationResult{}, &model.GenerationError{Attempts: attempts, Cause: ctx.Err()}
				}
				if attempt < e.opts.MaxAttempts {
					e.sleep(ctx, time.Duration(attempt)*e.opts.BaseRetryDelay)
				}
				continue
			}

			items, perr := e.parse(ctx, raw)
			if perr != nil {
				attempts = append(attempts, model.TierAttempt{Tier: tier.Name, Attempt: attempt, Reason: perr.Error()})
				lastErr = perr
				if attempt < e.opts.MaxAttempts {
					e.sleep(ctx, time.Duration(attempt)*e.opts.BaseRetryDelay)
				}
				continue
			}

			items = Cap(Deduplicate(Normalize(items)), e.opts.MaxItems)
			if len(items) == 0 {
				lastErr = fmt.Errorf("%w: all items dropped during normalization", model.ErrParseFailed)
				attempts = append(attempts, model.TierAttempt{Tier: tier.Name, Attempt: attempt, Reason: lastErr.Error()})
				continue
			}

			observeItems(len(items))
			return model.GenerationResult{
				Items:           items,
				ModelUsed:       tier.Name,
				EstimatedTokens: estimated,
			}, nil
		}

		if !escalate && tierIdx < len(escalation)-1 {
			// Transport retries exhausted on this tier; the larger tier may
			// sit behind a different deployment, so it is still worth trying.
			log.Ctx(ctx).Warn().Str("tier", tier.Name).Msg("Attempts exhausted, escalating to the next tier")
			observeEscalation(tier.Name, "exhausted")
		}
	}

	return model.GenerationResult{}, &model.GenerationError{Attempts: attempts, Cause: lastErr}
}

// parse tries the strict JSON contract first and falls back to the
// plain-text scanner for outputs that abandoned JSON.
func (e *Engine) parse(ctx context.Context, raw string) ([]model.QAItem, error) {
	items, err := ParseStrict(raw)
	if err == nil {
		return items, nil
	}
	log.Ctx(ctx).Debug().Msg("Strict JSON parse failed, trying plain-text fallback")
	return ParseText(raw)
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// truncateChunks drops trailing chunks until the joined context fits the
// character limit. When even the first chunk is too large it is hard-cut.
func truncateChunks(chunks []string, charLimit int) []string {
	if charLimit <= 0 {
		return nil
	}
	kept := make([]string, 0, len(chunks))
	total := 0
	for i, c := range chunks {
		sep := 0
		if i > 0 {
			sep = len(prompt.ChunkSeparator)
		}
		if total+sep+len(c) > charLimit {
			break
		}
		total += sep + len(c)
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return []string{chunks[0][:charLimit]}
	}
	return kept
}
