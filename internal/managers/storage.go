// Package managers builds the configured run stores and fans runs out to them.
package managers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/internal/storage/filestore"
	"github.com/chrissnell/wellrecharge/internal/storage/sqlite"
	"github.com/chrissnell/wellrecharge/internal/storage/timescaledb"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

// StorageManager holds our active storage backends. It implements storage.Store:
// runs are saved to every engine and read back from the first one.
type StorageManager struct {
	Engines []StorageEngine
	logger  *zap.SugaredLogger
}

// StorageEngine pairs a backend with its configuration name
type StorageEngine struct {
	Name  string
	Store storage.Store
}

// NewStorageManager creates a StorageManager object, populated with all configured
// stores in the order sqlite, timescaledb, msgpack.
func NewStorageManager(ctx context.Context, c *config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{logger: logger}

	if c.SQLite != nil {
		if err := s.AddEngine(ctx, "sqlite", c); err != nil {
			return s, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
	}
	if c.TimescaleDB != nil {
		if err := s.AddEngine(ctx, "timescaledb", c); err != nil {
			return s, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
	}
	if c.Msgpack != nil {
		if err := s.AddEngine(ctx, "msgpack", c); err != nil {
			return s, fmt.Errorf("could not add msgpack storage backend: %w", err)
		}
	}
	return s, nil
}

// AddEngine adds a new StorageEngine of name engineName to our StorageManager
func (s *StorageManager) AddEngine(ctx context.Context, engineName string, c *config.StorageData) error {
	var (
		store storage.Store
		err   error
	)

	switch engineName {
	case "sqlite":
		store, err = sqlite.New(ctx, c.SQLite.Path, s.logger.Named("sqlite"))
	case "timescaledb":
		store, err = timescaledb.New(ctx, c.TimescaleDB.ConnectionString, s.logger.Named("timescaledb"))
	case "msgpack":
		store, err = filestore.New(c.Msgpack.Directory, s.logger.Named("msgpack"))
	default:
		return fmt.Errorf("unknown storage engine %q", engineName)
	}
	if err != nil {
		return err
	}

	s.Engines = append(s.Engines, StorageEngine{Name: engineName, Store: store})
	return nil
}

// Len returns the number of configured engines
func (s *StorageManager) Len() int {
	return len(s.Engines)
}

// SaveRun saves run to every engine. A failing engine does not stop the others;
// all failures are returned together.
func (s *StorageManager) SaveRun(ctx context.Context, run *storage.Run) error {
	var err error
	for _, e := range s.Engines {
		if saveErr := e.Store.SaveRun(ctx, run); saveErr != nil {
			s.logger.Errorf("could not save run %s to %s: %v", run.ID, e.Name, saveErr)
			err = multierr.Append(err, fmt.Errorf("%s: %w", e.Name, saveErr))
			continue
		}
		s.logger.Infof("saved run %s to %s", run.ID, e.Name)
	}
	return err
}

// ListRuns lists the runs of the first engine
func (s *StorageManager) ListRuns(ctx context.Context) ([]storage.Summary, error) {
	if len(s.Engines) == 0 {
		return nil, nil
	}
	return s.Engines[0].Store.ListRuns(ctx)
}

// LoadRun loads a run from the first engine
func (s *StorageManager) LoadRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	if len(s.Engines) == 0 {
		return nil, storage.ErrRunNotFound
	}
	return s.Engines[0].Store.LoadRun(ctx, id)
}

// Close closes every engine
func (s *StorageManager) Close() error {
	var err error
	for _, e := range s.Engines {
		err = multierr.Append(err, e.Store.Close())
	}
	return err
}

var _ storage.Store = (*StorageManager)(nil)
