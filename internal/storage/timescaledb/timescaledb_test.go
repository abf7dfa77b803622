package timescaledb

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/wellrecharge/internal/database"
	"github.com/chrissnell/wellrecharge/internal/glue"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/internal/types"
)

func TestDailyRows(t *testing.T) {
	start := time.Date(2019, 12, 30, 0, 0, 0, 0, time.UTC)
	est := &glue.Estimate{
		Start:       start,
		Percentiles: []float64{0.05, 0.5, 0.95},
		Recharge: []glue.Band{
			{Mean: 1.5, Percentiles: []float64{0.5, 1.2, 3}},
			{Mean: types.Missing(), Percentiles: []float64{types.Missing(), types.Missing(), types.Missing()}},
			{Mean: 0, Percentiles: []float64{0, 0, 0}},
		},
		Level: []glue.Band{{Mean: 10.2}, {Mean: 10.1}, {Mean: math.NaN()}},
	}
	run := storage.NewRun("MW-1", 45, mrc.Model{Kind: mrc.Linear}, est, &glue.Ensemble{})

	rows := DailyRows(run)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if !rows[2].Day.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("third row dated %v", rows[2].Day)
	}
	if rows[0].RunID != run.ID.String() {
		t.Errorf("row run id %q, expected %q", rows[0].RunID, run.ID)
	}
	if *rows[0].Low != 0.5 || *rows[0].Median != 1.2 || *rows[0].High != 3 || *rows[0].Level != 10.2 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Mean != nil || rows[1].Low != nil || rows[1].Median != nil {
		t.Errorf("missing values should be stored as NULL: %+v", rows[1])
	}
	if rows[2].Mean == nil || *rows[2].Mean != 0 || rows[2].Level != nil {
		t.Errorf("zero recharge must be kept and NaN level dropped: %+v", rows[2])
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	run := storage.NewRun("MW-1", 45, mrc.Model{}, &glue.Estimate{Samples: 10, Behavioral: 4}, &glue.Ensemble{Likelihood: glue.KGE, Seed: 9})
	want := run.Summarize()
	got, err := summary(runRecord(want, nil))
	if err != nil {
		t.Fatalf("summary returned error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, expected %+v", got, want)
	}

	if _, err := summary(database.RunRecord{ID: "not-a-uuid"}); err == nil {
		t.Error("expected an error for a malformed id")
	}
}

func TestOpenClosesConnectionWhenMigrationFails(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "pool.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("gorm.Open returned error: %v", err)
	}

	// A cancelled context makes every statement, and so the migration, fail.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := open(ctx, db, zap.NewNop().Sugar()); err == nil {
		t.Fatal("expected open to fail")
	}
	if err := sqlDB.Ping(); err == nil {
		t.Error("expected the connection pool to be closed after a failed migration")
	}
}
