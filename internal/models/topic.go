// Copyright 2025 James Ross
package models

import (
	"fmt"
	"time"
)

// TopicMetadata is the unit of work handed to a Processor on Q2. It is
// never persisted as its own entity beyond the queue message.
type TopicMetadata struct {
	TopicID        string    `json:"topic_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Source         Source    `json:"source"`
	SourceURL      string    `json:"source_url"`
	CollectedAt    time.Time `json:"collected_at"`
	PriorityScore  float64   `json:"priority_score"`
	CollectionID   string    `json:"collection_id"`
	CollectionBlob string    `json:"collection_blob"`

	// Source-specific extras carried through for quality-score signal.
	Upvotes  int `json:"upvotes,omitempty"`
	Comments int `json:"comments,omitempty"`
	Boosts   int `json:"boosts,omitempty"`

	ContractVersion string `json:"contract_version"`
}

// NewTopicMetadata derives a TopicMetadata from a standardised item.
func NewTopicMetadata(item CollectionItem, priority float64, collectionID, collectionBlob string) TopicMetadata {
	return TopicMetadata{
		TopicID:         TopicID(item.Source, item.ID),
		Title:           item.Title,
		Content:         item.Content,
		Source:          item.Source,
		SourceURL:       item.SourceURL,
		CollectedAt:     item.CollectedAt,
		PriorityScore:   priority,
		CollectionID:    collectionID,
		CollectionBlob:  collectionBlob,
		Upvotes:         item.Upvotes,
		Comments:        item.Comments,
		Boosts:          item.Boosts,
		ContractVersion: ContractVersion,
	}
}

// TopicID computes the stable {source}_{id} identifier.
func TopicID(source Source, id string) string {
	return fmt.Sprintf("%s_%s", source, id)
}
