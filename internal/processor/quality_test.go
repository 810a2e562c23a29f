// Copyright 2025 James Ross
package processor

import (
	"strings"
	"testing"
)

func makeContent(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestQualityScoreInRange(t *testing.T) {
	score := QualityScore(makeContent(900), 500, 80, 0)
	if score < 0 || score > 1 {
		t.Fatalf("expected score in [0,1], got %f", score)
	}
}

func TestQualityScoreFavoursTargetWordCount(t *testing.T) {
	target := QualityScore(makeContent(1000), 0, 0, 0)
	tooShort := QualityScore(makeContent(50), 0, 0, 0)
	if target <= tooShort {
		t.Fatalf("expected in-range word count to score higher than too-short content")
	}
}

func TestQualityScoreRewardsStructure(t *testing.T) {
	flat := makeContent(900)
	structured := "# Heading\n\n" + makeContent(400) + "\n\n" + makeContent(400)
	if QualityScore(structured, 0, 0, 0) <= QualityScore(flat, 0, 0, 0) {
		t.Fatalf("expected structured content to score higher")
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("one two three"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}
