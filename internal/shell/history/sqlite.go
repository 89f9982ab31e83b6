package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID                string `db:"id"`
	Tool              string `db:"tool"`
	Action            string `db:"action"`
	Success           bool   `db:"success"`
	Message           string `db:"message"`
	FilePath          string `db:"file_path"`
	ContainerName     string `db:"container_name"`
	ContainerID       string `db:"container_id"`
	ContentDigest     string `db:"content_digest"`
	LogCount          int    `db:"log_count"`
	CleanupIncomplete bool   `db:"cleanup_incomplete"`
	UserID            string `db:"user_id"`
	StartedAt         string `db:"started_at"`
	FinishedAt        string `db:"finished_at"`
}

// RecordRun stores a run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, sum report.Summary) error {
	query := `
		INSERT INTO runs (
			id, tool, action, success, message, file_path, container_name,
			container_id, content_digest, log_count, cleanup_incomplete, user_id,
			started_at, finished_at
		) VALUES (
			:id, :tool, :action, :success, :message, :file_path, :container_name,
			:container_id, :content_digest, :log_count, :cleanup_incomplete, :user_id,
			:started_at, :finished_at
		)`

	_, err := s.db.NamedExecContext(ctx, query, toRow(sum))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("RecordRun", "run", sum.RunID, "run already recorded", ErrDuplicateID)
		}
		return NewStoreError("RecordRun", "run", sum.RunID, err.Error(), err)
	}
	return nil
}

// GetRun returns the summary of one run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*report.Summary, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	sum, err := fromRow(row)
	if err != nil {
		return nil, NewStoreError("GetRun", "run", id, err.Error(), ErrInvalidData)
	}
	return &sum, nil
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]report.Summary, error) {
	opts = opts.Normalize()

	var rows []runRow
	var err error
	if opts.Tool != "" {
		query := `SELECT * FROM runs WHERE tool = ? ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
		err = s.db.SelectContext(ctx, &rows, query, string(opts.Tool), opts.Limit, opts.Offset)
	} else {
		query := `SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
		err = s.db.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]report.Summary, 0, len(rows))
	for _, row := range rows {
		sum, err := fromRow(row)
		if err != nil {
			return nil, NewStoreError("ListRuns", "run", row.ID, err.Error(), ErrInvalidData)
		}
		runs = append(runs, sum)
	}
	return runs, nil
}

func toRow(s report.Summary) runRow {
	return runRow{
		ID:                s.RunID,
		Tool:              string(s.Tool),
		Action:            string(s.Action),
		Success:           s.Success,
		Message:           s.Message,
		FilePath:          s.FilePath,
		ContainerName:     s.ContainerName,
		ContainerID:       s.ContainerID,
		ContentDigest:     s.ContentDigest,
		LogCount:          s.LogCount,
		CleanupIncomplete: s.Cleanup,
		UserID:            s.User,
		StartedAt:         s.StartedAt.UTC().Format(timeLayout),
		FinishedAt:        s.FinishedAt.UTC().Format(timeLayout),
	}
}

func fromRow(r runRow) (report.Summary, error) {
	started, err := time.Parse(timeLayout, r.StartedAt)
	if err != nil {
		return report.Summary{}, fmt.Errorf("started_at: %w", err)
	}
	finished, err := time.Parse(timeLayout, r.FinishedAt)
	if err != nil {
		return report.Summary{}, fmt.Errorf("finished_at: %w", err)
	}
	return report.Summary{
		RunID:         r.ID,
		Tool:          domain.Tool(r.Tool),
		Action:        domain.Action(r.Action),
		Success:       r.Success,
		Message:       r.Message,
		FilePath:      r.FilePath,
		ContainerName: r.ContainerName,
		ContainerID:   r.ContainerID,
		ContentDigest: r.ContentDigest,
		LogCount:      r.LogCount,
		Cleanup:       r.CleanupIncomplete,
		User:          r.UserID,
		StartedAt:     started,
		FinishedAt:    finished,
	}, nil
}
