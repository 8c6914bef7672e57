package retrieve

import (
	"regexp"
	"sort"
	"strings"
)

var (
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// boilerplateLines are navigation fragments that survive HTML extraction and
// carry no factual content.
var boilerplateLines = map[string]bool{
	"home": true, "menu": true, "login": true, "sign in": true,
	"sign up": true, "search": true, "subscribe": true,
	"accept cookies": true, "cookie policy": true, "privacy policy": true,
	"terms of service": true, "skip to content": true, "back to top": true,
}

// CleanText normalizes whitespace and drops boilerplate navigation lines.
func CleanText(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(multiSpaceRe.ReplaceAllString(line, " "))
		if line == "" {
			kept = append(kept, "")
			continue
		}
		if boilerplateLines[strings.ToLower(line)] {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	out = multiNewlineRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// ChunkText splits the text into word-based chunks of about chunkSize words
// with the given overlap between consecutive chunks.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 8
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkSize {
		return []string{strings.Join(words, " ")}
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// TopK ranks chunks by lexical overlap with the query and returns the best k
// in their original document order. With k <= 0 or k >= len(chunks) every
// chunk is returned unchanged.
func TopK(chunks []string, query string, k int) []string {
	if k <= 0 || k >= len(chunks) {
		return chunks
	}

	queryTerms := termSet(query)

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(chunks))
	for i, chunk := range chunks {
		ranked[i] = scored{index: i, score: overlapScore(queryTerms, chunk)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := ranked[:k]
	sort.Slice(top, func(i, j int) bool { return top[i].index < top[j].index })

	out := make([]string, k)
	for i, s := range top {
		out[i] = chunks[s.index]
	}
	return out
}

func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "?,.!:;\"'()")
		if len(w) > 2 {
			terms[w] = true
		}
	}
	return terms
}

func overlapScore(queryTerms map[string]bool, chunk string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	hits := 0
	for _, w := range strings.Fields(strings.ToLower(chunk)) {
		w = strings.Trim(w, "?,.!:;\"'()")
		if queryTerms[w] {
			hits++
		}
	}
	return float64(hits)
}
