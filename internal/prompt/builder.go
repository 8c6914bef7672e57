package prompt

import (
	"fmt"
	"strings"

	"webintel-server/internal/routing"
)

// ChunkSeparator joins retrieved context chunks into one context blob.
const ChunkSeparator = "\n\n"

// JoinChunks concatenates context chunks in retrieval order.
func JoinChunks(chunks []string) string {
	return strings.Join(chunks, ChunkSeparator)
}

// Build produces the prompt for the selected tier's style. Pure: identical
// inputs yield identical output.
func Build(chunks []string, query string, style routing.PromptStyle) string {
	context := JoinChunks(chunks)
	if style == routing.StyleDirective {
		return buildDirective(context, query)
	}
	return buildOpenEnded(context, query)
}

// SystemMessage returns the system prompt matching the style.
func SystemMessage(style routing.PromptStyle) string {
	if style == routing.StyleDirective {
		return "Return only valid JSON with an 'items' array of {question, expected_response}."
	}
	return "You are a careful JSON-only generator."
}

// buildOpenEnded is the primary-tier prompt: concise instructions that rely
// on model capability.
func buildOpenEnded(context, query string) string {
	return fmt.Sprintf(
		"You are an exhaustive Golden Question extraction assistant for chatbot testing.\n"+
			"Your task is to extract ALL POSSIBLE distinct questions that real users might ask from the provided context.\n\n"+
			"CRITICAL REQUIREMENTS:\n"+
			"1. Extract the MAXIMUM number of questions possible - DO NOT limit yourself\n"+
			"2. NEVER hallucinate answers - use ONLY what is explicitly stated in the context\n"+
			"3. Cover every possible user scenario and information need\n\n"+
			"ANSWER REQUIREMENTS:\n"+
			"- Extract answers DIRECTLY from the provided context only\n"+
			"- If context doesn't contain a complete answer, extract what's available\n"+
			"- Keep answers concise but informative\n"+
			"- Never add information not present in the context\n\n"+
			"User Query: %s\n\n"+
			"Return STRICT JSON with a top-level key `items` that is an array of objects.\n"+
			"Each object must have the keys:\n"+
			"- \"question\" -> the extracted question in natural language\n"+
			"- \"expected_response\" -> the answer extracted directly from context\n\n"+
			"Context:\n%s",
		query, context)
}

// buildDirective is the fallback-tier prompt: explicit numbered steps, an
// output-format example and bullet-enumerated extraction rules.
func buildDirective(context, query string) string {
	return fmt.Sprintf(
		"TASK: Extract question/answer pairs from the context below for chatbot testing.\n\n"+
			"Follow these steps exactly:\n\n"+
			"STEP 1: Read the entire context carefully.\n"+
			"STEP 2: Identify every fact, feature, process, price, policy and contact detail mentioned.\n"+
			"STEP 3: For each identified piece of information, write the question a real user would ask about it.\n"+
			"STEP 4: Write the answer to each question using ONLY text from the context. Never invent information.\n"+
			"STEP 5: Output every pair as JSON in the exact format shown below. Output nothing else.\n\n"+
			"OUTPUT FORMAT EXAMPLE:\n"+
			"{\"items\": [\n"+
			"  {\"question\": \"What payment methods are accepted?\", \"expected_response\": \"Visa, MasterCard and PayPal are accepted.\"},\n"+
			"  {\"question\": \"How do I reset my password?\", \"expected_response\": \"Click 'Forgot password' on the login page.\"}\n"+
			"]}\n\n"+
			"EXTRACTION RULES:\n"+
			"- Extract as many pairs as the context supports\n"+
			"- One question per fact; do not merge facts\n"+
			"- Answers must be complete sentences copied or minimally adapted from the context\n"+
			"- Skip navigation text, ads and boilerplate\n"+
			"- Do not add commentary before or after the JSON\n\n"+
			"User Query: %s\n\n"+
			"Context:\n%s\n\n"+
			"BEGIN EXTRACTION NOW.",
		query, context)
}
