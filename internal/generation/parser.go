package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"webintel-server/internal/model"
)

// itemsEnvelope is the strict output contract both prompt styles request.
type itemsEnvelope struct {
	Items []model.QAItem `json:"items"`
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// questionMarkerRe matches the question markers weaker models emit when they
// ignore the JSON contract: "Q:", "Q1:", "Question:", "Question 3 -".
var questionMarkerRe = regexp.MustCompile(`^(?:Q(?:uestion)?)\s*\d*\s*[:\-.]\s*(.+)$`)

// answerMarkerRe matches "A:", "Answer:", "Expected Response:" prefixes.
var answerMarkerRe = regexp.MustCompile(`^(?:A(?:nswer)?|Expected\s+Response)\s*\d*\s*[:\-.]\s*(.*)$`)

// ParseStrict decodes the model output as the strict JSON contract. It strips
// code fences, then falls back to the outermost brace window when the model
// wrapped the JSON in prose. A top-level array is accepted as well.
func ParseStrict(raw string) ([]model.QAItem, error) {
	text := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if items, err := decodeItems(text); err == nil {
		return items, nil
	}

	// Brace-window recovery: the model prefixed or suffixed the JSON with
	// commentary despite the instructions.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if items, err := decodeItems(text[start : end+1]); err == nil {
			return items, nil
		}
	}

	start = strings.Index(text, "[")
	end = strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		if items, err := decodeItems(text[start : end+1]); err == nil {
			return items, nil
		}
	}

	return nil, fmt.Errorf("%w: output is not the expected JSON contract", model.ErrParseFailed)
}

func decodeItems(text string) ([]model.QAItem, error) {
	var envelope itemsEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && len(envelope.Items) > 0 {
		return envelope.Items, nil
	}

	var bare []model.QAItem
	if err := json.Unmarshal([]byte(text), &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	return nil, fmt.Errorf("%w: no items decoded", model.ErrParseFailed)
}

// ParseText is the plain-text fallback for outputs that abandoned JSON
// entirely. It scans line by line: a question marker starts a new pair,
// answer lines accumulate until the next question marker.
func ParseText(raw string) ([]model.QAItem, error) {
	var items []model.QAItem
	var question string
	var answerLines []string

	flush := func() {
		if question != "" && len(answerLines) > 0 {
			items = append(items, model.QAItem{
				Question:         question,
				ExpectedResponse: strings.Join(answerLines, " "),
			})
		}
		question = ""
		answerLines = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := questionMarkerRe.FindStringSubmatch(line); m != nil {
			flush()
			question = strings.TrimSpace(m[1])
			continue
		}
		if m := answerMarkerRe.FindStringSubmatch(line); m != nil {
			if answer := strings.TrimSpace(m[1]); answer != "" {
				answerLines = append(answerLines, answer)
			}
			continue
		}
		// Continuation lines belong to the current answer.
		if question != "" {
			answerLines = append(answerLines, line)
		}
	}
	flush()

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no question/answer markers found", model.ErrParseFailed)
	}
	return items, nil
}

// Normalize trims both fields, drops incomplete pairs, guarantees a trailing
// question mark and capitalizes the first letter of the question.
func Normalize(items []model.QAItem) []model.QAItem {
	out := make([]model.QAItem, 0, len(items))
	for _, item := range items {
		q := strings.TrimSpace(item.Question)
		a := strings.TrimSpace(item.ExpectedResponse)
		if q == "" || a == "" {
			continue
		}
		if !strings.HasSuffix(q, "?") {
			q = strings.TrimRight(q, ".!") + "?"
		}
		runes := []rune(q)
		runes[0] = unicode.ToUpper(runes[0])
		out = append(out, model.QAItem{Question: string(runes), ExpectedResponse: a})
	}
	return out
}

// Deduplicate removes near-duplicate questions by word overlap. When two
// questions share at least 80% of their words, the pair with the longer
// answer wins.
func Deduplicate(items []model.QAItem) []model.QAItem {
	out := make([]model.QAItem, 0, len(items))
	wordSets := make([]map[string]bool, 0, len(items))

	for _, item := range items {
		words := questionWords(item.Question)
		dup := false
		for i, kept := range wordSets {
			if jaccard(words, kept) >= 0.8 {
				dup = true
				if len(item.ExpectedResponse) > len(out[i].ExpectedResponse) {
					out[i] = item
					wordSets[i] = words
				}
				break
			}
		}
		if !dup {
			out = append(out, item)
			wordSets = append(wordSets, words)
		}
	}
	return out
}

// Cap bounds the item list to the configured maximum, preserving order.
func Cap(items []model.QAItem, maxItems int) []model.QAItem {
	if maxItems > 0 && len(items) > maxItems {
		return items[:maxItems]
	}
	return items
}

func questionWords(q string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(q)) {
		w = strings.Trim(w, "?,.!:;\"'()")
		if w != "" {
			words[w] = true
		}
	}
	return words
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
