package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/chrissnell/wellrecharge/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "runs.db"), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Close()

	storagetest.Exercise(t, s)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := New(ctx, path, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	run := storagetest.Fixture("MW-7")
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	s, err = New(ctx, path, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("reopening returned error: %v", err)
	}
	defer s.Close()
	if _, err := s.LoadRun(ctx, run.ID); err != nil {
		t.Errorf("run lost after reopening: %v", err)
	}
}
