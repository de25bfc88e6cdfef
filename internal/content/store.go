package content

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/postgres"
)

// Schema creates the help_content table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS help_content (
		id              TEXT PRIMARY KEY,
		content_type    TEXT NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		content         TEXT NOT NULL DEFAULT '',
		question        TEXT NOT NULL DEFAULT '',
		answer          TEXT NOT NULL DEFAULT '',
		category        TEXT NOT NULL DEFAULT '',
		tags            TEXT[] NOT NULL DEFAULT '{}',
		language        TEXT NOT NULL DEFAULT '',
		difficulty      TEXT NOT NULL DEFAULT '',
		popularity      DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_updated    TIMESTAMPTZ,
		search_keywords TEXT[] NOT NULL DEFAULT '{}',
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_help_content_type ON help_content (content_type)`,
}

// Store persists content items in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "content-store"),
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

// Upsert writes items of contentType in one transaction.
func (s *Store) Upsert(ctx context.Context, contentType string, items []helpsearch.ContentItem) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO help_content (id, content_type, title, content, question, answer,
				category, tags, language, difficulty, popularity, last_updated, search_keywords, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
			ON CONFLICT (id) DO UPDATE SET
				content_type = EXCLUDED.content_type,
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				question = EXCLUDED.question,
				answer = EXCLUDED.answer,
				category = EXCLUDED.category,
				tags = EXCLUDED.tags,
				language = EXCLUDED.language,
				difficulty = EXCLUDED.difficulty,
				popularity = EXCLUDED.popularity,
				last_updated = EXCLUDED.last_updated,
				search_keywords = EXCLUDED.search_keywords,
				updated_at = NOW()`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, item := range items {
			_, err := stmt.ExecContext(ctx,
				item.ID, contentType, item.Title, item.Content, item.Question, item.Answer,
				item.Category, pq.Array(nonNil(item.Tags)), item.Language, string(item.Difficulty),
				item.Popularity, nullTime(item.LastUpdated), pq.Array(nonNil(item.SearchKeywords)),
			)
			if err != nil {
				return fmt.Errorf("upserting content %s: %w", item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("content stored", "content_type", contentType, "count", len(items))
	return nil
}

// Delete removes the items with ids and returns how many rows went away.
func (s *Store) Delete(ctx context.Context, ids []string) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM help_content WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("deleting content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

// Load returns every stored item grouped by content type.
func (s *Store) Load(ctx context.Context) (map[string][]helpsearch.ContentItem, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, content_type, title, content, question, answer, category, tags,
			language, difficulty, popularity, last_updated, search_keywords
		FROM help_content
		ORDER BY content_type, id`)
	if err != nil {
		return nil, fmt.Errorf("querying content: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]helpsearch.ContentItem)
	for rows.Next() {
		var (
			item        helpsearch.ContentItem
			contentType string
			difficulty  string
			lastUpdated sql.NullTime
		)
		if err := rows.Scan(
			&item.ID, &contentType, &item.Title, &item.Content, &item.Question, &item.Answer,
			&item.Category, pq.Array(&item.Tags), &item.Language, &difficulty, &item.Popularity,
			&lastUpdated, pq.Array(&item.SearchKeywords),
		); err != nil {
			return nil, fmt.Errorf("scanning content row: %w", err)
		}
		item.Difficulty = helpsearch.Difficulty(difficulty)
		if lastUpdated.Valid {
			item.LastUpdated = lastUpdated.Time
		}
		groups[contentType] = append(groups[contentType], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating content rows: %w", err)
	}
	return groups, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
