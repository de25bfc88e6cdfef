// Package publisher persists content writes to PostgreSQL and publishes them
// as ContentEvents to Kafka, from where every searcher replica applies them.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/kafka"
)

// Store is the durable side of a write. *content.Store implements it.
type Store interface {
	Upsert(ctx context.Context, contentType string, items []helpsearch.ContentItem) error
	Delete(ctx context.Context, ids []string) (int64, error)
}

// EventPublisher is the Kafka side of a write. *kafka.Producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// partitionKey routes every event to one partition so that an upsert and a
// later delete of the same item are applied in order.
const partitionKey = "help-content"

type Publisher struct {
	store    Store
	producer EventPublisher
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Publisher. store may be nil when content lives only in
// bundles and Kafka.
func New(store Store, producer EventPublisher) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Upsert persists items and publishes one upsert event for the batch.
func (p *Publisher) Upsert(ctx context.Context, req *ingestion.ContentRequest) (*ingestion.ContentEvent, error) {
	if p.store != nil {
		if err := p.store.Upsert(ctx, req.ContentType, req.Items); err != nil {
			return nil, fmt.Errorf("storing content: %w", err)
		}
	}
	event := &ingestion.ContentEvent{
		EventID:     uuid.NewString(),
		Op:          ingestion.OpUpsert,
		ContentType: req.ContentType,
		Items:       req.Items,
		PublishedAt: p.now().UTC(),
	}
	if err := p.publish(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Delete removes ids from the store and publishes a delete event.
func (p *Publisher) Delete(ctx context.Context, ids []string) (*ingestion.ContentEvent, error) {
	if p.store != nil {
		n, err := p.store.Delete(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("deleting content: %w", err)
		}
		p.logger.Debug("content rows deleted", "count", n)
	}
	event := &ingestion.ContentEvent{
		EventID:     uuid.NewString(),
		Op:          ingestion.OpDelete,
		IDs:         ids,
		PublishedAt: p.now().UTC(),
	}
	if err := p.publish(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (p *Publisher) publish(ctx context.Context, event *ingestion.ContentEvent) error {
	if err := p.producer.Publish(ctx, kafka.Event{Key: partitionKey, Value: event}); err != nil {
		p.logger.Error("failed to publish content event, store and index may diverge until reindex",
			"event_id", event.EventID,
			"op", event.Op,
			"error", err,
		)
		return fmt.Errorf("publishing content event: %w", err)
	}
	p.logger.Info("content event published",
		"event_id", event.EventID,
		"op", event.Op,
		"items", len(event.Items),
		"ids", len(event.IDs),
	)
	return nil
}
