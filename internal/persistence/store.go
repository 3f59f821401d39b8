package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/scaffold/internal/pipeline"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID         string
	Project    string
	ConfigPath string
	Backend    string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Tiers      []TierRecord
}

// TierRecord is a persisted tier result.
type TierRecord struct {
	Tier           string
	Format         string
	RenderedPrompt string
	Output         string
	Optimized      bool
	Failed         bool
	ErrorKind      string
	Error          string
	Duration       time.Duration
	Files          []pipeline.File
}

// Store defines the run history interface.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	SaveTierResult(ctx context.Context, runID string, result pipeline.TierResult) error
	FinishRun(ctx context.Context, runID, status string) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	TierOutputs(ctx context.Context, runID string) (map[string]string, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)
var _ pipeline.Sink = (*SQLiteStore)(nil)

// NewSQLiteStore opens the history database at dbPath, creating parent
// directories as needed.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite ignores _foreign_keys in the DSN; it is set by PRAGMA in open.
	return open(ctx, fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
}

// NewMemoryStore creates an in-memory store. Each call gets its own
// database, shared between that store's connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
}

func open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Concurrent runs share the store; a second connection keeps reads
	// from queuing behind a write.
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
