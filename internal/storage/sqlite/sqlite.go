// Package sqlite stores recharge runs in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dateLayout = "2006-01-02"

// Store implements storage.Store on SQLite
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.SugaredLogger
}

// New opens (creating if needed) the database at dbPath
func New(ctx context.Context, dbPath string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if err := NewMigrator(db, logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite schema: %w", err)
	}

	logger.Infof("opened SQLite run store at %s", dbPath)
	return &Store{db: db, dbPath: dbPath, logger: logger}, nil
}

// NewMigrator returns the schema migrator for a run store database
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", ""), logger)
}

// SaveRun inserts or replaces a run
func (s *Store) SaveRun(ctx context.Context, run *storage.Run) error {
	payload, err := storage.Encode(run)
	if err != nil {
		return fmt.Errorf("could not encode run %s: %w", run.ID, err)
	}
	sum := run.Summarize()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, site, created_at, start_date, days, samples, behavioral, failed, likelihood, threshold, seed, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID.String(), sum.Site, sum.Created.UnixNano(), sum.Start.Format(dateLayout), sum.Days,
		sum.Samples, sum.Behavioral, sum.Failed, sum.Likelihood, sum.Threshold, sum.Seed, payload)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	s.logger.Debugf("stored run %s (%d bytes)", run.ID, len(payload))
	return nil
}

// ListRuns returns the stored runs, newest first
func (s *Store) ListRuns(ctx context.Context) ([]storage.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site, created_at, start_date, days, samples, behavioral, failed, likelihood, threshold, seed
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []storage.Summary
	for rows.Next() {
		var (
			sum     storage.Summary
			id      string
			created int64
			start   string
		)
		if err := rows.Scan(&id, &sum.Site, &created, &start, &sum.Days, &sum.Samples,
			&sum.Behavioral, &sum.Failed, &sum.Likelihood, &sum.Threshold, &sum.Seed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("stored run has a malformed id %q: %w", id, err)
		}
		sum.Created = time.Unix(0, created).UTC()
		if sum.Start, err = time.ParseInLocation(dateLayout, start, time.UTC); err != nil {
			return nil, fmt.Errorf("run %s has a malformed start date: %w", id, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// LoadRun returns the run with the given ID
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return storage.Decode(payload)
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
