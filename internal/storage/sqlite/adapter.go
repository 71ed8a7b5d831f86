package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"emojidb/internal/common/errors"
	"emojidb/internal/models"
	"emojidb/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

// Ensure Adapter implements RecordStore
var _ storage.RecordStore = (*Adapter)(nil)

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS emoji_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			total INTEGER NOT NULL DEFAULT 0,
			enriched INTEGER NOT NULL DEFAULT 0,
			unchanged INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS emoji_records (
			run_id TEXT NOT NULL,
			code TEXT NOT NULL,
			category TEXT NOT NULL,
			sub_category TEXT NOT NULL,
			emoji TEXT NOT NULL,
			title TEXT NOT NULL,
			aliases TEXT NOT NULL DEFAULT '[]',
			shortcodes TEXT NOT NULL DEFAULT '{}',
			tags TEXT NOT NULL DEFAULT '[]',
			codepoints TEXT NOT NULL DEFAULT '[]',
			image TEXT NOT NULL DEFAULT '{}',
			position INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emoji_records_code ON emoji_records(code)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
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

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO emoji_runs (id, status, started_at, total, enriched, unchanged)
		 VALUES (?, ?, ?, ?, ?, ?)`,
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

	result, err := a.db.ExecContext(ctx,
		`UPDATE emoji_runs
		 SET status = ?, finished_at = ?, total = ?, enriched = ?, unchanged = ?
		 WHERE id = ?`,
		run.Status, *run.FinishedAt, run.Total, run.Enriched, run.Unchanged, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundError(fmt.Sprintf("run %s", run.ID))
	}
	return nil
}

func (a *Adapter) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	run := &storage.Run{}
	var finished sql.NullTime

	err := a.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, total, enriched, unchanged
		 FROM emoji_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Status, &run.StartedAt, &finished, &run.Total, &run.Enriched, &run.Unchanged)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError(fmt.Sprintf("run %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

func (a *Adapter) UpsertRecord(ctx context.Context, runID string, rec models.Record) error {
	cols, err := storage.EncodeColumns(rec)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO emoji_records
			(run_id, code, category, sub_category, emoji, title, aliases, shortcodes, tags, codepoints, image, position, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COUNT(*) FROM emoji_records WHERE run_id = ?), CURRENT_TIMESTAMP)
		 ON CONFLICT(run_id, code) DO UPDATE SET
			category = excluded.category,
			sub_category = excluded.sub_category,
			emoji = excluded.emoji,
			title = excluded.title,
			aliases = excluded.aliases,
			shortcodes = excluded.shortcodes,
			tags = excluded.tags,
			codepoints = excluded.codepoints,
			image = excluded.image,
			updated_at = CURRENT_TIMESTAMP`,
		runID, rec.Code, rec.Category, rec.SubCategory, rec.Glyph, rec.Title,
		cols.Aliases, cols.Shortcodes, cols.Tags, cols.Codepoints, cols.Image, runID)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.Code, err)
	}
	return nil
}

func (a *Adapter) GetRecord(ctx context.Context, runID, code string) (*models.Record, error) {
	rec := &models.Record{}
	var cols storage.RecordColumns

	err := a.db.QueryRowContext(ctx,
		`SELECT code, category, sub_category, emoji, title, aliases, shortcodes, tags, codepoints, image
		 FROM emoji_records WHERE run_id = ? AND code = ?`, runID, code).
		Scan(&rec.Code, &rec.Category, &rec.SubCategory, &rec.Glyph, &rec.Title,
			&cols.Aliases, &cols.Shortcodes, &cols.Tags, &cols.Codepoints, &cols.Image)
	if err == sql.ErrNoRows {
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
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM emoji_records WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
