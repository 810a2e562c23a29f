// Copyright 2025 James Ross
package collector

import (
	"math"
	"time"

	"github.com/content-forge/pipeline/internal/models"
)

// PriorityScore blends engagement signal (upvotes/boosts/comments) with
// recency into a [0,1] heuristic, per spec.md §4.5's TopicMetadata
// priority_score field.
func PriorityScore(item models.CollectionItem, now time.Time) float64 {
	engagement := float64(item.Upvotes + item.Boosts + item.Favourites + item.Comments)
	// log1p compresses the long tail of viral posts; the result is capped at 1.
	engagementScore := math.Log1p(engagement) / math.Log1p(1000)
	if engagementScore > 1 {
		engagementScore = 1
	}

	age := now.Sub(item.CollectedAt)
	if age < 0 {
		age = 0
	}
	const halfLife = 24 * time.Hour
	recencyScore := math.Exp(-float64(age) / float64(halfLife) * math.Ln2)

	score := 0.6*engagementScore + 0.4*recencyScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
