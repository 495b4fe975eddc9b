package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_SelectsFrequentSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Mammals nurse their young. Mammals are warm-blooded animals. " +
		"Mammals evolved from synapsids. Granite is an igneous rock."

	summary := s.Summarize(text, 2)
	assert.Contains(t, summary, "Mammals")
	assert.NotContains(t, summary, "Granite")
	assert.Len(t, strings.Split(summary, ". "), 2)
}

func TestSummarize_PreservesOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "First fact about databases. Unrelated filler sentence here. Second fact about databases."

	summary := s.Summarize(text, 2)
	first := strings.Index(summary, "First fact")
	second := strings.Index(summary, "Second fact")
	assert.GreaterOrEqual(t, first, 0)
	assert.Greater(t, second, first)
}

func TestSummarize_ShortTextReturnedWhole(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Equal(t, "just a fragment", s.Summarize("just a fragment", 3))
	assert.Equal(t, "One sentence.", s.Summarize("One sentence.", 3))
}

func TestSummarize_DefaultLimit(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "One. Two. Three. Four. Five."
	summary := s.Summarize(text, 0)
	assert.Len(t, strings.Split(summary, " "), 3)
}
