// Command ingestion publishes help content to the running searchers.
//
// It reads every YAML bundle in a directory, validates it, stores it in
// PostgreSQL (when enabled) and publishes one upsert event per bundle to the
// content updates topic. With -delete it publishes a delete event instead.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml] [-dir content]
//	go run ./cmd/ingestion -delete faq-1,faq-2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dir := flag.String("dir", "", "bundle directory to publish (defaults to content.bundleDir)")
	deleteIDs := flag.String("delete", "", "comma-separated content IDs to delete instead of publishing")
	dryRun := flag.Bool("dry-run", false, "validate bundles without storing or publishing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *dir == "" {
		*dir = cfg.Content.BundleDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dir, *deleteIDs, *dryRun); err != nil {
		slog.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dir, deleteIDs string, dryRun bool) error {
	var requests []ingestion.ContentRequest
	if deleteIDs == "" {
		groups, err := content.BundleDir{Dir: dir}.Load(ctx)
		if err != nil {
			return err
		}
		requests, err = validateGroups(groups)
		if err != nil {
			return err
		}
		slog.Info("bundles validated", "dir", dir, "content_types", len(requests))
	}
	if dryRun {
		return nil
	}
	if !cfg.Kafka.Enabled {
		return errors.New("kafka is disabled; enable it to publish content")
	}

	var store publisher.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		contentStore := content.NewStore(db)
		if err := contentStore.Migrate(ctx); err != nil {
			return err
		}
		store = contentStore
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ContentUpdates)
	defer producer.Close()
	pub := publisher.New(store, producer)

	if deleteIDs != "" {
		var ids []string
		for _, id := range strings.Split(deleteIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		event, err := pub.Delete(ctx, ids)
		if err != nil {
			return err
		}
		slog.Info("delete published", "event_id", event.EventID, "ids", len(ids))
		return nil
	}

	for i := range requests {
		event, err := pub.Upsert(ctx, &requests[i])
		if err != nil {
			return fmt.Errorf("publishing %s bundle: %w", requests[i].ContentType, err)
		}
		slog.Info("bundle published",
			"event_id", event.EventID,
			"content_type", requests[i].ContentType,
			"items", len(requests[i].Items),
		)
	}
	return nil
}

// validateGroups turns bundle groups into batches in content type order,
// reporting every invalid batch before failing.
func validateGroups(groups map[string][]helpsearch.ContentItem) ([]ingestion.ContentRequest, error) {
	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	var (
		requests []ingestion.ContentRequest
		invalid  int
	)
	for _, t := range types {
		items := groups[t]
		for start := 0; start < len(items); start += validator.MaxItemsPerRequest {
			end := min(start+validator.MaxItemsPerRequest, len(items))
			req := ingestion.ContentRequest{ContentType: t, Items: items[start:end]}
			if err := validator.ValidateContentRequest(&req); err != nil {
				slog.Error("invalid bundle", "content_type", t, "offset", start, "error", err)
				invalid++
				continue
			}
			requests = append(requests, req)
		}
	}
	if invalid > 0 {
		return nil, fmt.Errorf("%d invalid content batches", invalid)
	}
	return requests, nil
}
