package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicEstimator_Estimate(t *testing.T) {
	est := HeuristicEstimator{}

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty text", text: "", want: 0},
		{name: "single char rounds up", text: "a", want: 1},
		{name: "exact multiple", text: "abcdef", want: 2},
		{name: "remainder rounds up", text: "abcdefg", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, est.Estimate(tt.text))
		})
	}
}

func TestHeuristicEstimator_Deterministic(t *testing.T) {
	est := HeuristicEstimator{}
	text := strings.Repeat("some page content ", 100)

	first := est.Estimate(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, est.Estimate(text))
	}
}

func TestHeuristicEstimator_PrefixMonotonic(t *testing.T) {
	est := HeuristicEstimator{}
	text := strings.Repeat("lorem ipsum dolor sit amet ", 50)

	prev := 0
	for i := 0; i <= len(text); i += 7 {
		cur := est.Estimate(text[:i])
		assert.GreaterOrEqual(t, cur, prev, "estimate must not decrease for a longer prefix")
		prev = cur
	}
}

func TestNew_SelectsImplementation(t *testing.T) {
	est, err := New("heuristic", "llama-3.1-70b-versatile")
	require.NoError(t, err)
	assert.IsType(t, HeuristicEstimator{}, est)

	est, err = New("", "whatever")
	require.NoError(t, err)
	assert.IsType(t, HeuristicEstimator{}, est)

	est, err = New("tiktoken", "gpt-4")
	require.NoError(t, err)
	assert.IsType(t, &TiktokenEstimator{}, est)
	assert.Greater(t, est.Estimate("hello world"), 0)
}

func TestTiktokenEstimator_FallsBackForUnknownModel(t *testing.T) {
	est, err := NewTiktokenEstimator("llama-3.1-70b-versatile")
	require.NoError(t, err)
	assert.Equal(t, 0, est.Estimate(""))
	assert.Greater(t, est.Estimate("hello world, how are you?"), 0)
}
