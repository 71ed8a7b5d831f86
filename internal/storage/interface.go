// Package storage mirrors pipeline output into a relational database.
//
// The JSON file stays the primary artifact of a run. A RecordStore keeps a
// queryable copy: one row per run in emoji_runs and one row per record and
// run in emoji_records. Writing the same record twice within a run replaces
// the earlier row.
//
// Two adapters are provided, SQLite (storage/sqlite) and PostgreSQL
// (storage/postgres). Each registers itself with the default registry on
// import, and NewStorage picks one from configuration:
//
//	store, err := storage.NewStorage(cfg)
//	if err != nil {
//		return err
//	}
//	if store != nil {
//		defer store.Close()
//	}
package storage

import (
	"context"
	"time"

	"emojidb/internal/models"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// RecordStore persists runs and their records
type RecordStore interface {
	Health(ctx context.Context) error
	Close() error

	// StartRun inserts a run row; FinishRun updates its totals and status
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)

	// UpsertRecord writes rec for runID, replacing any row with the same code
	UpsertRecord(ctx context.Context, runID string, rec models.Record) error
	GetRecord(ctx context.Context, runID, code string) (*models.Record, error)
	CountRecords(ctx context.Context, runID string) (int, error)
}

// Run is one pipeline execution
type Run struct {
	ID         string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Total      int
	Enriched   int
	Unchanged  int
}

type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

type StorageFactory interface {
	Create(config StorageConfig) (RecordStore, error)
	GetType() string
}

// GenericConfig is a simple map-based implementation of StorageConfig
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil // Basic configs don't need validation
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}

// String returns the string value stored under key, or ""
func (gc GenericConfig) String(key string) string {
	if v, ok := gc[key].(string); ok {
		return v
	}
	return ""
}
