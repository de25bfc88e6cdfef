package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
)

func setup(t *testing.T) (kafka.MessageHandler, *helpsearch.Engine, *prometheus.Registry) {
	t.Helper()
	engine, err := helpsearch.New(config.DefaultSearchConfig())
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return HandleMessage(indexer.New(engine, nil, m), m), engine, reg
}

func encode(t *testing.T, event ingestion.ContentEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func eventCount(t *testing.T, reg *prometheus.Registry, op, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != "helpsearch_content_events_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == op && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestHandleUpsertThenDelete(t *testing.T) {
	handle, engine, reg := setup(t)
	ctx := context.Background()

	upsert := ingestion.ContentEvent{
		EventID:     "e1",
		Op:          ingestion.OpUpsert,
		ContentType: "faq",
		Items: []helpsearch.ContentItem{
			{ID: "faq-1", Question: "How do I pop bubbles?", Answer: "Tap them."},
		},
	}
	if err := handle(ctx, []byte("faq-1"), encode(t, upsert)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	doc, ok := engine.Document("faq-1")
	if !ok || doc.Title != "How do I pop bubbles?" || doc.Type != "faq" {
		t.Fatalf("document = %+v, %v", doc, ok)
	}

	del := ingestion.ContentEvent{EventID: "e2", Op: ingestion.OpDelete, IDs: []string{"faq-1"}}
	if err := handle(ctx, []byte("faq-1"), encode(t, del)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := engine.Document("faq-1"); ok {
		t.Error("document survived delete event")
	}

	if got := eventCount(t, reg, "upsert", "applied"); got != 1 {
		t.Errorf("upsert applied = %v", got)
	}
	if got := eventCount(t, reg, "delete", "applied"); got != 1 {
		t.Errorf("delete applied = %v", got)
	}
}

func TestHandleSkipsBadMessages(t *testing.T) {
	handle, engine, reg := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		value []byte
	}{
		{"undecodable", []byte("{not json")},
		{"unknown op", encode(t, ingestion.ContentEvent{EventID: "e", Op: "merge"})},
		{"delete without ids", encode(t, ingestion.ContentEvent{EventID: "e", Op: ingestion.OpDelete})},
		{"upsert without items", encode(t, ingestion.ContentEvent{EventID: "e", Op: ingestion.OpUpsert})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handle(ctx, nil, tt.value)
			if !errors.Is(err, kafka.ErrSkip) {
				t.Errorf("err = %v, want ErrSkip", err)
			}
		})
	}
	if n := engine.Statistics().Index.TotalContentItems; n != 0 {
		t.Errorf("index has %d items after bad messages", n)
	}
	if got := eventCount(t, reg, "unknown", "invalid"); got != 1 {
		t.Errorf("unknown invalid = %v, want 1", got)
	}
}
