// Copyright 2025 James Ross
package processor

import (
	"math"
	"strings"
)

const (
	targetWordsMin = 600
	targetWordsMax = 2000
)

// wordCountScore peaks at 1 for word counts inside [targetWordsMin,
// targetWordsMax] and falls off linearly outside it, reaching 0 at zero
// words below the band and at double targetWordsMax above it.
func wordCountScore(words int) float64 {
	switch {
	case words >= targetWordsMin && words <= targetWordsMax:
		return 1
	case words < targetWordsMin:
		return math.Max(0, float64(words)/float64(targetWordsMin))
	default:
		excess := float64(words-targetWordsMax) / float64(targetWordsMax)
		return math.Max(0, 1-excess)
	}
}

// structureScore rewards content that reads like an article rather than
// a single undifferentiated blob: heading markers and paragraph breaks.
func structureScore(content string) float64 {
	paragraphs := strings.Count(content, "\n\n")
	headings := strings.Count(content, "\n#")
	score := 0.0
	if paragraphs >= 2 {
		score += 0.6
	} else if paragraphs >= 1 {
		score += 0.3
	}
	if headings >= 1 {
		score += 0.4
	}
	return math.Min(1, score)
}

// sourceSignalScore compresses raw engagement counters into [0,1] using
// the same log1p treatment as the collector's priority score, against a
// softer cap since by this stage engagement has already passed the
// collector's quality gate once.
func sourceSignalScore(upvotes, comments, boosts int) float64 {
	engagement := float64(upvotes + comments + boosts)
	return math.Min(1, math.Log1p(engagement)/math.Log1p(500))
}

// WordCount splits on whitespace; it does not attempt locale-aware
// tokenisation since the quality score only needs an order-of-magnitude
// signal, not a precise count.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// QualityScore blends word-count fit, structural markers, and source
// engagement signal into [0,1], per spec.md §4.4 step 6. The exact
// blend is an implementation decision the distilled spec left open —
// see DESIGN.md.
func QualityScore(content string, upvotes, comments, boosts int) float64 {
	score := 0.5*wordCountScore(WordCount(content)) +
		0.3*structureScore(content) +
		0.2*sourceSignalScore(upvotes, comments, boosts)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
