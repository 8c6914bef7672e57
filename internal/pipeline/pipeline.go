package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"webintel-server/internal/export"
	"webintel-server/internal/fetch"
	"webintel-server/internal/generation"
	"webintel-server/internal/model"
	"webintel-server/internal/retrieve"
	"webintel-server/internal/store"
	"webintel-server/internal/testcases"
)

// Fetcher is the page acquisition dependency.
type Fetcher interface {
	Fetch(ctx context.Context, spec fetch.Spec) ([]fetch.Page, error)
}

// Engine is the Q&A generation dependency.
type Engine interface {
	Generate(ctx context.Context, chunks []string, query, startModel string) (model.GenerationResult, error)
}

// Options carries the chunking parameters shared by every run.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Runner executes one pipeline end to end: fetch, clean and chunk, retrieve
// the most relevant chunks, generate Q&A pairs, derive test cases, render the
// workbook and persist it.
type Runner struct {
	fetcher Fetcher
	engine  Engine
	tcGen   *testcases.Generator
	store   store.Store
	opts    Options
}

// NewRunner wires a runner from its collaborators.
func NewRunner(fetcher Fetcher, engine Engine, tcGen *testcases.Generator, st store.Store, opts Options) *Runner {
	return &Runner{fetcher: fetcher, engine: engine, tcGen: tcGen, store: st, opts: opts}
}

// Run executes the pipeline for one job and returns the artifact reference.
func (r *Runner) Run(ctx context.Context, jobID string, req model.PipelineRequest) (string, error) {
	logger := log.Ctx(ctx).With().Str("jobID", jobID).Str("url", req.URL).Logger()

	logger.Info().Bool("crawl", req.Crawl).Msg("Fetching page content")
	pages, err := r.fetcher.Fetch(ctx, fetch.Spec{
		URL:            req.URL,
		Crawl:          req.Crawl,
		MaxDepth:       req.MaxDepth,
		MaxPages:       req.MaxPages,
		SameDomainOnly: req.SameDomainOnly == nil || *req.SameDomainOnly,
	})
	if err != nil {
		return "", err
	}
	logger.Info().Int("pages", len(pages)).Msg("Pages fetched")

	var chunks []string
	for _, page := range pages {
		cleaned := retrieve.CleanText(page.Text)
		chunks = append(chunks, retrieve.ChunkText(cleaned, r.opts.ChunkSize, r.opts.ChunkOverlap)...)
	}
	if len(chunks) == 0 {
		return "", model.ErrNoChunks
	}

	selected := retrieve.TopK(chunks, req.Query, req.TopK)
	logger.Info().Int("chunks", len(chunks)).Int("selected", len(selected)).Msg("Context chunks prepared")

	result, err := r.engine.Generate(ctx, selected, req.Query, req.Model)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	logger.Info().
		Int("items", len(result.Items)).
		Str("model", result.ModelUsed).
		Int("estimatedTokens", result.EstimatedTokens).
		Msg("Q&A pairs generated")

	var cases []model.TestCase
	if req.WithTestCases == nil || *req.WithTestCases {
		cases = r.tcGen.Generate(ctx, result.Items, testcases.Options{
			UseLLM:     req.TestCasesLLM,
			LLMModel:   result.ModelUsed,
			Variations: req.TCVariations,
			Negatives:  req.TCNegatives,
		})
		logger.Info().Int("cases", len(cases)).Msg("Test cases derived")
	}

	data, err := export.Workbook(result.Items, cases, req.URL)
	if err != nil {
		return "", fmt.Errorf("workbook export failed: %w", err)
	}

	ref, err := r.store.Save(jobID, req.OutputFilename, data)
	if err != nil {
		return "", fmt.Errorf("failed to persist artifact: %w", err)
	}
	logger.Info().Str("artifact", ref).Msg("Pipeline finished")
	return ref, nil
}

var _ Engine = (*generation.Engine)(nil)
