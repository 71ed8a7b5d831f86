package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emojidb/internal/common/errors"
	"emojidb/internal/models"
	"emojidb/internal/storage"
)

// connectTimeout bounds pool creation, ping and migration
const connectTimeout = 15 * time.Second

type Adapter struct {
	pool   *pgxpool.Pool
	config *Config
}

// Ensure Adapter implements RecordStore
var _ storage.RecordStore = (*Adapter)(nil)

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		pool:   pool,
		config: config,
	}

	if err := adapter.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Migration with PostgreSQL-specific syntax
func (a *Adapter) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS emoji_runs (
			id VARCHAR(64) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			total INTEGER NOT NULL DEFAULT 0,
			enriched INTEGER NOT NULL DEFAULT 0,
			unchanged INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS emoji_records (
			run_id VARCHAR(64) NOT NULL,
			code VARCHAR(255) NOT NULL,
			category TEXT NOT NULL,
			sub_category TEXT NOT NULL,
			emoji TEXT NOT NULL,
			title TEXT NOT NULL,
			aliases JSONB NOT NULL DEFAULT '[]',
			shortcodes JSONB NOT NULL DEFAULT '{}',
			tags JSONB NOT NULL DEFAULT '[]',
			codepoints JSONB NOT NULL DEFAULT '[]',
			image JSONB NOT NULL DEFAULT '{}',
			position INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emoji_records_code ON emoji_records(code)`,
	}

	for _, query := range queries {
		if _, err := a.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) StartRun(ctx context.Context, run *storage.Run) error {
	if run.Status == "" {
		run.Status = storage.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO emoji_runs (id, status, started_at, total, enriched, unchanged)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Status, run.StartedAt, run.Total, run.Enriched, run.Unchanged)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (a *Adapter) FinishRun(ctx context.Context, run *storage.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	tag, err := a.pool.Exec(ctx,
		`UPDATE emoji_runs
		 SET status = $1, finished_at = $2, total = $3, enriched = $4, unchanged = $5
		 WHERE id = $6`,
		run.Status, *run.FinishedAt, run.Total, run.Enriched, run.Unchanged, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(fmt.Sprintf("run %s", run.ID))
	}
	return nil
}

func (a *Adapter) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	run := &storage.Run{}

	err := a.pool.QueryRow(ctx,
		`SELECT id, status, started_at, finished_at, total, enriched, unchanged
		 FROM emoji_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Enriched, &run.Unchanged)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundError(fmt.Sprintf("run %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (a *Adapter) UpsertRecord(ctx context.Context, runID string, rec models.Record) error {
	cols, err := storage.EncodeColumns(rec)
	if err != nil {
		return err
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO emoji_records
			(run_id, code, category, sub_category, emoji, title, aliases, shortcodes, tags, codepoints, image, position, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10::jsonb, $11::jsonb,
			(SELECT COUNT(*) FROM emoji_records WHERE run_id = $1), NOW())
		 ON CONFLICT (run_id, code) DO UPDATE SET
			category = EXCLUDED.category,
			sub_category = EXCLUDED.sub_category,
			emoji = EXCLUDED.emoji,
			title = EXCLUDED.title,
			aliases = EXCLUDED.aliases,
			shortcodes = EXCLUDED.shortcodes,
			tags = EXCLUDED.tags,
			codepoints = EXCLUDED.codepoints,
			image = EXCLUDED.image,
			updated_at = NOW()`,
		runID, rec.Code, rec.Category, rec.SubCategory, rec.Glyph, rec.Title,
		cols.Aliases, cols.Shortcodes, cols.Tags, cols.Codepoints, cols.Image)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.Code, err)
	}
	return nil
}

func (a *Adapter) GetRecord(ctx context.Context, runID, code string) (*models.Record, error) {
	rec := &models.Record{}
	var cols storage.RecordColumns

	err := a.pool.QueryRow(ctx,
		`SELECT code, category, sub_category, emoji, title,
			aliases::text, shortcodes::text, tags::text, codepoints::text, image::text
		 FROM emoji_records WHERE run_id = $1 AND code = $2`, runID, code).
		Scan(&rec.Code, &rec.Category, &rec.SubCategory, &rec.Glyph, &rec.Title,
			&cols.Aliases, &cols.Shortcodes, &cols.Tags, &cols.Codepoints, &cols.Image)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundError(fmt.Sprintf("record %s", code))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if err := storage.DecodeColumns(rec, cols); err != nil {
		return nil, err
	}
	return rec, nil
}

func (a *Adapter) CountRecords(ctx context.Context, runID string) (int, error) {
	var count int
	err := a.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM emoji_records WHERE run_id = $1`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
