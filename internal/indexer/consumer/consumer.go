// Package consumer reads content events from Kafka and applies them to the
// local index through the Indexer.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
)

// IndexConsumer wraps a Kafka consumer to drive index updates.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

func (ic *IndexConsumer) Close() error {
	return ic.consumer.Close()
}

// HandleMessage returns a MessageHandler applying each ContentEvent to ix.
// Events that cannot be decoded or fail validation are skipped, since
// redelivery would never fix them. m may be nil.
func HandleMessage(ix *indexer.Indexer, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	record := func(op ingestion.Operation, status string) {
		if m != nil {
			m.ContentEventsTotal.WithLabelValues(string(op), status).Inc()
		}
	}

	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.ContentEvent](value)
		if err != nil {
			record("unknown", "invalid")
			return fmt.Errorf("%w: key %s: %v", kafka.ErrSkip, key, err)
		}
		if err := validator.ValidateEvent(&event); err != nil {
			record(event.Op, "invalid")
			return fmt.Errorf("%w: event %s: %v", kafka.ErrSkip, event.EventID, err)
		}

		switch event.Op {
		case ingestion.OpUpsert:
			report := ix.Upsert(ctx, event.ContentType, event.Items)
			for _, skipped := range report.Skipped {
				logger.Warn("content item skipped",
					"event_id", event.EventID,
					"index", skipped.Index,
					"id", skipped.ID,
					"error", skipped.Err,
				)
			}
			logger.Info("content event applied",
				"event_id", event.EventID,
				"op", event.Op,
				"content_type", event.ContentType,
				"indexed", report.Indexed,
				"replaced", report.Replaced,
			)
		case ingestion.OpDelete:
			removed := ix.Delete(ctx, event.IDs...)
			logger.Info("content event applied",
				"event_id", event.EventID,
				"op", event.Op,
				"removed", removed,
			)
		}
		record(event.Op, "applied")
		return nil
	}
}
