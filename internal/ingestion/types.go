// Package ingestion defines the request and Kafka event types of the content
// update pipeline: writes are validated, persisted, published to Kafka and
// applied to every searcher's index by the consumer.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
)

// Operation is what a ContentEvent does to the index.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// ContentRequest is the JSON body accepted by POST /api/v1/content.
type ContentRequest struct {
	ContentType string                   `json:"contentType"`
	Items       []helpsearch.ContentItem `json:"items"`
}

// ContentResponse is returned once a write has been accepted.
type ContentResponse struct {
	EventID string `json:"eventId,omitempty"`
	Status  string `json:"status"`
	Indexed int    `json:"indexed"`
	Removed int    `json:"removed"`
	Skipped int    `json:"skipped"`
}

// ContentEvent is the Kafka message payload of one content change.
type ContentEvent struct {
	EventID     string                   `json:"eventId"`
	Op          Operation                `json:"op"`
	ContentType string                   `json:"contentType,omitempty"`
	Items       []helpsearch.ContentItem `json:"items,omitempty"`
	IDs         []string                 `json:"ids,omitempty"`
	PublishedAt time.Time                `json:"publishedAt"`
}
