package testcases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"webintel-server/internal/generation"
	"webintel-server/internal/model"
)

// Options controls how test cases are derived from the Q&A pairs.
type Options struct {
	UseLLM     bool
	LLMModel   string
	Variations int
	Negatives  int
}

// Generator expands Q&A pairs into structured chatbot test cases. The
// rule-based path is always available; the LLM path enriches variations and
// falls back to the rules on any failure.
type Generator struct {
	client generation.AIClient
}

// New builds a generator. The client may be nil when LLM mode is never used.
func New(client generation.AIClient) *Generator {
	return &Generator{client: client}
}

// Generate produces one test case per Q&A item.
func (g *Generator) Generate(ctx context.Context, items []model.QAItem, opts Options) []model.TestCase {
	if opts.Variations <= 0 {
		opts.Variations = model.DefaultTCVariations
	}
	if opts.Negatives < 0 {
		opts.Negatives = 0
	}

	cases := make([]model.TestCase, 0, len(items))
	for i, item := range items {
		tc := model.TestCase{
			ID:               i + 1,
			Question:         item.Question,
			ExpectedResponse: item.ExpectedResponse,
			TestSteps:        buildSteps(item),
			EntitiesSlots:    extractEntities(item),
		}

		var variations []string
		var negative string
		if opts.UseLLM && g.client != nil {
			var err error
			variations, negative, err = g.llmExpand(ctx, item, opts)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Int("case", tc.ID).Msg("LLM test case expansion failed, using rule-based fallback")
				variations, negative = nil, ""
			}
		}
		if len(variations) == 0 {
			variations = ruleVariations(item.Question, opts.Variations)
		}
		if negative == "" && i < opts.Negatives {
			negative = ruleNegative(item, i)
		}

		tc.Variations = strings.Join(variations, " | ")
		tc.NegativeCase = negative
		tc.Notes = fmt.Sprintf("Derived from extracted pair #%d", i+1)
		cases = append(cases, tc)
	}
	return cases
}

func buildSteps(item model.QAItem) string {
	return fmt.Sprintf(
		"1. Open a new chat session\n"+
			"2. Ask: %q\n"+
			"3. Verify the reply conveys: %q\n"+
			"4. Verify no unrelated or fabricated details are added",
		item.Question, item.ExpectedResponse)
}

// variationTemplates rephrase a question the way real users would.
var variationTemplates = []string{
	"Can you tell me %s",
	"I'd like to know %s",
	"Please explain %s",
	"Quick question: %s",
	"Hey, %s",
	"Do you know %s",
	"I was wondering %s",
	"Could you clarify %s",
	"Help me with this: %s",
	"Just curious, %s",
	"One more thing: %s",
	"Tell me %s",
	"I need info: %s",
	"What can you say about this: %s",
	"Sorry if obvious, but %s",
	"Before I sign up, %s",
	"As a new user, %s",
	"In short, %s",
	"Simply put, %s",
	"For clarity, %s",
}

func ruleVariations(question string, limit int) []string {
	core := lowerFirst(strings.TrimSuffix(strings.TrimSpace(question), "?")) + "?"
	if limit > len(variationTemplates) {
		limit = len(variationTemplates)
	}
	out := make([]string, 0, limit)
	for _, tpl := range variationTemplates[:limit] {
		out = append(out, fmt.Sprintf(tpl, core))
	}
	return out
}

// negativeTemplates probe behavior outside the documented answer.
var negativeTemplates = []string{
	"Ask: %q then claim the answer is wrong; the bot must restate the documented answer, not invent a new one",
	"Ask: %q about a competitor's product; the bot must not answer with this site's details",
	"Ask: %q with critical words misspelled; the bot should still map to the right intent or ask for clarification",
	"Ask the opposite of %q; the bot must not confirm a false premise",
}

func ruleNegative(item model.QAItem, idx int) string {
	tpl := negativeTemplates[idx%len(negativeTemplates)]
	return fmt.Sprintf(tpl, item.Question)
}

// extractEntities collects capitalized tokens and numbers as entity/slot
// candidates.
func extractEntities(item model.QAItem) string {
	seen := map[string]bool{}
	var entities []string
	for i, w := range strings.Fields(item.Question + " " + item.ExpectedResponse) {
		w = strings.Trim(w, "?,.!:;\"'()")
		if w == "" {
			continue
		}
		r := []rune(w)
		isCapitalized := unicode.IsUpper(r[0]) && len(r) > 1 && i != 0
		isNumeric := strings.IndexFunc(w, unicode.IsDigit) >= 0
		if (isCapitalized || isNumeric) && !seen[w] {
			seen[w] = true
			entities = append(entities, w)
		}
	}
	return strings.Join(entities, ", ")
}

// llmExpansion is the JSON contract for the LLM-assisted path.
type llmExpansion struct {
	Variations []string `json:"variations"`
	Negative   string   `json:"negative"`
}

func (g *Generator) llmExpand(ctx context.Context, item model.QAItem, opts Options) ([]string, string, error) {
	systemPrompt := "Return only valid JSON with keys 'variations' (array of strings) and 'negative' (string)."
	userPrompt := fmt.Sprintf(
		"Generate up to %d natural paraphrases a real user might type for the question below, "+
			"and one negative test probe that must NOT be answered with the expected response.\n\n"+
			"Question: %s\nExpected response: %s",
		opts.Variations, item.Question, item.ExpectedResponse)

	raw, err := g.client.GenerateText(ctx, opts.LLMModel, systemPrompt, userPrompt)
	if err != nil {
		return nil, "", err
	}

	text := strings.TrimSpace(raw)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var exp llmExpansion
	if err := json.Unmarshal([]byte(text), &exp); err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrParseFailed, err)
	}
	if len(exp.Variations) > opts.Variations {
		exp.Variations = exp.Variations[:opts.Variations]
	}
	return exp.Variations, exp.Negative, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
