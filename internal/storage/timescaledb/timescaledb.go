package timescaledb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrissnell/wellrecharge/internal/database"
	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/internal/types"
)

// batchSize bounds the rows sent per INSERT of daily recharge.
const batchSize = 500

// Storage holds the connection of a TimescaleDB run store
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// New connects to TimescaleDB, migrates the run tables and sets up the daily
// recharge hypertable. The TimescaleDB specific steps only warn on failure so the
// store also works on plain PostgreSQL.
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Storage, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	return open(ctx, db, logger)
}

// open prepares the schema on db. The connection is closed when that fails.
func open(ctx context.Context, db *gorm.DB, logger *zap.SugaredLogger) (*Storage, error) {
	t := &Storage{TimescaleDBConn: db, logger: logger}

	logger.Info("creating TimescaleDB extension...")
	if err := db.WithContext(ctx).Exec(createExtensionSQL).Error; err != nil {
		logger.Warnf("warning: could not create TimescaleDB extension: %v", err)
	}

	logger.Info("migrating run tables...")
	if err := db.WithContext(ctx).AutoMigrate(&database.RunRecord{}, &database.DailyRecharge{}); err != nil {
		if cerr := t.Close(); cerr != nil {
			logger.Warnf("warning: could not close TimescaleDB connection: %v", cerr)
		}
		return nil, fmt.Errorf("could not migrate run tables: %w", err)
	}

	for _, step := range []struct{ name, sql string }{
		{"hypertable", createHypertableSQL},
		{"indexes", createIndexesSQL},
		{"monthly recharge aggregate", createMonthlyViewSQL},
	} {
		logger.Infof("creating %s...", step.name)
		if err := db.WithContext(ctx).Exec(step.sql).Error; err != nil {
			logger.Warnf("warning: could not create %s: %v", step.name, err)
		}
	}
	return t, nil
}

// SaveRun stores the run summary, its payload and its daily recharge rows in one
// transaction. Saving a run again replaces it.
func (t *Storage) SaveRun(ctx context.Context, run *storage.Run) error {
	payload, err := storage.Encode(run)
	if err != nil {
		return fmt.Errorf("could not encode run %s: %w", run.ID, err)
	}
	rec := runRecord(run.Summarize(), payload)
	rows := DailyRows(run)

	return t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return fmt.Errorf("could not store run %s: %w", run.ID, err)
		}
		if err := tx.Where("run_id = ?", rec.ID).Delete(&database.DailyRecharge{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("could not store daily recharge of run %s: %w", run.ID, err)
		}
		return nil
	})
}

// ListRuns returns the stored runs, newest first.
func (t *Storage) ListRuns(ctx context.Context) ([]storage.Summary, error) {
	var recs []database.RunRecord
	err := t.TimescaleDBConn.WithContext(ctx).
		Omit("payload").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("error querying database for runs: %w", err)
	}

	out := make([]storage.Summary, 0, len(recs))
	for _, r := range recs {
		s, err := summary(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadRun returns the stored run with the given ID.
func (t *Storage) LoadRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	var rec database.RunRecord
	err := t.TimescaleDBConn.WithContext(ctx).Where("id = ?", id.String()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying database for run %s: %w", id, err)
	}
	return storage.Decode(rec.Payload)
}

// Close closes the underlying connection pool.
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runRecord(s storage.Summary, payload []byte) database.RunRecord {
	return database.RunRecord{
		ID:         s.ID.String(),
		Site:       s.Site,
		CreatedAt:  s.Created,
		Start:      s.Start,
		Days:       s.Days,
		Samples:    s.Samples,
		Behavioral: s.Behavioral,
		Failed:     s.Failed,
		Likelihood: s.Likelihood,
		Threshold:  s.Threshold,
		Seed:       s.Seed,
		Payload:    payload,
	}
}

func summary(r database.RunRecord) (storage.Summary, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return storage.Summary{}, fmt.Errorf("stored run has a malformed id %q: %w", r.ID, err)
	}
	return storage.Summary{
		ID:         id,
		Site:       r.Site,
		Created:    r.CreatedAt,
		Start:      r.Start,
		Days:       r.Days,
		Samples:    r.Samples,
		Behavioral: r.Behavioral,
		Failed:     r.Failed,
		Likelihood: r.Likelihood,
		Threshold:  r.Threshold,
		Seed:       r.Seed,
	}, nil
}

// DailyRows flattens the daily recharge bands of a run into table rows.
func DailyRows(run *storage.Run) []database.DailyRecharge {
	est := run.Estimate
	if est == nil || len(est.Percentiles) == 0 {
		return nil
	}
	low, high := 0, len(est.Percentiles)-1
	median := -1
	for k, p := range est.Percentiles {
		if p == 0.5 {
			median = k
		}
	}

	rows := make([]database.DailyRecharge, len(est.Recharge))
	for i, b := range est.Recharge {
		rows[i] = database.DailyRecharge{
			RunID: run.ID.String(),
			Day:   est.Date(i),
			Mean:  nullable(b.Mean),
			Low:   nullable(b.Percentiles[low]),
			High:  nullable(b.Percentiles[high]),
		}
		if median >= 0 {
			rows[i].Median = nullable(b.Percentiles[median])
		}
		if i < len(est.Level) {
			rows[i].Level = nullable(est.Level[i].Mean)
		}
	}
	return rows
}

func nullable(v float64) *float64 {
	if types.IsMissing(v) {
		return nil
	}
	return &v
}

var _ storage.Store = (*Storage)(nil)
