// Package statistics persists snapshots of search statistics to PostgreSQL
// so that popular queries, and the suggestions built from them, survive
// restarts.
package statistics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/postgres"
)

// Schema creates the search_statistics_snapshots table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS search_statistics_snapshots (
		id          BIGSERIAL PRIMARY KEY,
		data        JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_statistics_captured_at
		ON search_statistics_snapshots (captured_at DESC)`,
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "statistics-store"),
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

// SaveSnapshot persists stats.
func (s *Store) SaveSnapshot(ctx context.Context, stats helpsearch.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling statistics: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO search_statistics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving statistics snapshot: %w", err)
	}
	s.logger.Debug("statistics snapshot saved",
		"total_searches", stats.TotalSearches,
		"queries", len(stats.PopularQueries),
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil if there is none.
func (s *Store) LatestSnapshot(ctx context.Context) (*helpsearch.Statistics, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM search_statistics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats helpsearch.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first. Corrupt rows
// are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]helpsearch.Statistics, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM search_statistics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []helpsearch.Statistics
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats helpsearch.Statistics
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// Prune deletes all but the newest keep snapshots.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, `
		DELETE FROM search_statistics_snapshots
		WHERE id NOT IN (
			SELECT id FROM search_statistics_snapshots ORDER BY captured_at DESC LIMIT $1
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}
