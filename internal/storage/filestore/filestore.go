// Package filestore keeps each recharge run as a msgpack file in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/wellrecharge/internal/storage"
)

const extension = ".msgpack"

// Store implements storage.Store on a directory of msgpack files
type Store struct {
	dir    string
	logger *zap.SugaredLogger
}

// New creates dir if needed and returns a store writing into it
func New(dir string, logger *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create run directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+extension)
}

// SaveRun writes the run to <id>.msgpack, replacing an earlier copy atomically
func (s *Store) SaveRun(ctx context.Context, run *storage.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := storage.Encode(run)
	if err != nil {
		return fmt.Errorf("could not encode run %s: %w", run.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".run-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(run.ID)); err != nil {
		return err
	}
	s.logger.Debugf("wrote run %s to %s", run.ID, s.path(run.ID))
	return nil
}

// ListRuns decodes every run file in the directory, newest first
func (s *Store) ListRuns(ctx context.Context) ([]storage.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []storage.Summary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(e.Name(), extension))
		if err != nil {
			s.logger.Warnf("skipping unrecognised file %s in run directory", e.Name())
			continue
		}
		run, err := s.LoadRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, run.Summarize())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// LoadRun reads and decodes <id>.msgpack
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run, err := storage.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("could not decode run %s: %w", id, err)
	}
	return run, nil
}

// Close is a no-op for the file store
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
