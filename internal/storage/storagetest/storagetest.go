// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/wellrecharge/internal/glue"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/internal/types"
)

// Fixture returns a small run with a missing recharge day and one failed member.
func Fixture(site string) *storage.Run {
	start := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	recharge := types.NewSeries(start, 3)
	recharge.Values[0], recharge.Values[2] = 0.4, 1.1

	est := &glue.Estimate{
		Start:       start,
		Percentiles: []float64{0.05, 0.5, 0.95},
		Recharge: []glue.Band{
			{Mean: 0.4, Percentiles: []float64{0.1, 0.4, 0.9}, Count: 1},
			{Mean: types.Missing(), Percentiles: []float64{types.Missing(), types.Missing(), types.Missing()}},
			{Mean: 1.1, Percentiles: []float64{0.6, 1.1, 1.8}, Count: 1},
		},
		Samples:    2,
		Behavioral: 1,
		Failed:     1,
	}
	ens := &glue.Ensemble{
		Likelihood: glue.NSE,
		Threshold:  0.3,
		Seed:       11,
		Members: []glue.Member{
			{ID: 0, Parameters: types.ParameterSet{"max_storage": 120}, Score: 0.71, Behavioral: true, Weight: 1, Recharge: recharge},
			{ID: 1, Parameters: types.ParameterSet{"max_storage": 80}, Score: math.NaN(), Error: "forcing gap"},
		},
	}
	curve := mrc.Model{Kind: mrc.Exponential, Coefficients: []float64{0.02, -0.01}, DecayPerDay: 0.01005, Asymptote: 2, Segments: 3}
	return storage.NewRun(site, 44.5, curve, est, ens)
}

// Exercise saves, lists, reloads and replaces runs in s.
func Exercise(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	older := Fixture("MW-1")
	newer := Fixture("MW-2")
	newer.Created = older.Created.Add(time.Hour)

	for _, r := range []*storage.Run{older, newer} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun returned error: %v", err)
		}
	}

	list, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected both runs newest first, got %+v", list)
	}
	if got := list[1]; got.Site != "MW-1" || got.Days != 3 || got.Behavioral != 1 || got.Likelihood != "nse" || got.Seed != 11 {
		t.Errorf("unexpected summary: %+v", got)
	}
	if !list[1].Created.Equal(older.Created) || !list[1].Start.Equal(older.Estimate.Start) {
		t.Errorf("summary times %v/%v, expected %v/%v", list[1].Created, list[1].Start, older.Created, older.Estimate.Start)
	}

	got, err := s.LoadRun(ctx, older.ID)
	if err != nil {
		t.Fatalf("LoadRun returned error: %v", err)
	}
	if got.ID != older.ID || got.Site != older.Site || got.Curve.Kind != mrc.Exponential || got.Curve.Coefficients[1] != -0.01 {
		t.Errorf("loaded run differs: %+v", got)
	}
	if !types.IsMissing(got.Estimate.Recharge[1].Mean) || got.Estimate.Recharge[2].Percentiles[2] != 1.8 {
		t.Errorf("recharge bands not preserved: %+v", got.Estimate.Recharge)
	}
	if m := got.Ensemble.Members; len(m) != 2 || !m[1].Failed() || m[0].Failed() || !math.IsNaN(m[1].Score) {
		t.Errorf("members not preserved: %+v", m)
	}
	if v := got.Ensemble.Members[0].Recharge; v.Len() != 3 || !types.IsMissing(v.Values[1]) || v.Values[2] != 1.1 {
		t.Errorf("member series not preserved: %+v", v)
	}

	if _, err := s.LoadRun(ctx, uuid.New()); !errors.Is(err, storage.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	older.Site = "MW-1b"
	if err := s.SaveRun(ctx, older); err != nil {
		t.Fatalf("SaveRun (replace) returned error: %v", err)
	}
	list, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(list) != 2 || list[1].Site != "MW-1b" {
		t.Errorf("replacing a run should not duplicate it: %+v", list)
	}
}
