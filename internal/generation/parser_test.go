package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webintel-server/internal/model"
)

func TestParseStrict_PlainJSON(t *testing.T) {
	raw := `{"items": [{"question": "What is the price?", "expected_response": "Ten dollars per month."}]}`

	items, err := ParseStrict(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "What is the price?", items[0].Question)
	assert.Equal(t, "Ten dollars per month.", items[0].ExpectedResponse)
}

func TestParseStrict_CodeFence(t *testing.T) {
	raw := "```json\n{\"items\": [{\"question\": \"Q one?\", \"expected_response\": \"A one.\"}]}\n```"

	items, err := ParseStrict(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Q one?", items[0].Question)
}

func TestParseStrict_BraceWindowRecovery(t *testing.T) {
	raw := `Sure! Here is the JSON you asked for:
{"items": [{"question": "How do I log in?", "expected_response": "Use the login page."}]}
Hope that helps!`

	items, err := ParseStrict(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "How do I log in?", items[0].Question)
}

func TestParseStrict_TopLevelArray(t *testing.T) {
	raw := `[{"question": "A?", "expected_response": "B."}]`

	items, err := ParseStrict(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestParseStrict_Garbage(t *testing.T) {
	_, err := ParseStrict("I cannot answer that.")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrParseFailed)
}

func TestParseText_QuestionAnswerMarkers(t *testing.T) {
	raw := `Here are the pairs I found:

Q: What payment methods are accepted?
A: Visa, MasterCard and PayPal.

Question 2: How do I contact support?
Answer: Email support@example.com
or call 555-0100.

Q3 - Is there a free trial?
A - Yes, 14 days.`

	items, err := ParseText(raw)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "What payment methods are accepted?", items[0].Question)
	assert.Equal(t, "Visa, MasterCard and PayPal.", items[0].ExpectedResponse)

	// Continuation lines accumulate into the current answer.
	assert.Equal(t, "Email support@example.com or call 555-0100.", items[1].ExpectedResponse)

	assert.Equal(t, "Is there a free trial?", items[2].Question)
	assert.Equal(t, "Yes, 14 days.", items[2].ExpectedResponse)
}

func TestParseText_NoMarkers(t *testing.T) {
	_, err := ParseText("just some prose without any structure")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrParseFailed)
}

func TestNormalize(t *testing.T) {
	items := Normalize([]model.QAItem{
		{Question: "  what is the price ", ExpectedResponse: " Ten dollars. "},
		{Question: "How do I log in.", ExpectedResponse: "Use the login page."},
		{Question: "", ExpectedResponse: "orphan answer"},
		{Question: "orphan question?", ExpectedResponse: "   "},
	})

	require.Len(t, items, 2)
	assert.Equal(t, "What is the price?", items[0].Question)
	assert.Equal(t, "Ten dollars.", items[0].ExpectedResponse)
	assert.Equal(t, "How do I log in?", items[1].Question)
}

func TestDeduplicate_KeepsLongerAnswer(t *testing.T) {
	items := Deduplicate([]model.QAItem{
		{Question: "What is the monthly price?", ExpectedResponse: "Ten dollars."},
		{Question: "What is the monthly price?", ExpectedResponse: "Ten dollars per month, billed on the first."},
		{Question: "How do I cancel my account?", ExpectedResponse: "Open settings and click cancel."},
	})

	require.Len(t, items, 2)
	assert.Equal(t, "Ten dollars per month, billed on the first.", items[0].ExpectedResponse)
	assert.Equal(t, "How do I cancel my account?", items[1].Question)
}

func TestDeduplicate_DistinctQuestionsSurvive(t *testing.T) {
	items := Deduplicate([]model.QAItem{
		{Question: "What is the refund policy?", ExpectedResponse: "30 days."},
		{Question: "Where is the company located?", ExpectedResponse: "Berlin."},
	})
	assert.Len(t, items, 2)
}

func TestCap(t *testing.T) {
	items := make([]model.QAItem, 250)
	assert.Len(t, Cap(items, 200), 200)
	assert.Len(t, Cap(items, 0), 250)
	assert.Len(t, Cap(items[:5], 200), 5)
}
