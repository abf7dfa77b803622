// Package ingest reads observation files of the form "date,value".
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Layouts are the accepted timestamp formats, tried in order. Timestamps without a
// zone are read as UTC.
var Layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// missingTokens are value cells read as a missing observation.
var missingTokens = map[string]bool{"": true, "na": true, "nan": true, "null": true, "-": true}

// ReadFile reads the observations in path.
func ReadFile(path string) ([]types.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// Read parses CSV records with a timestamp in the first column and a value in the
// second. A first row whose timestamp does not parse is taken as a header. Lines
// starting with '#' are skipped and extra columns are ignored.
func Read(r io.Reader) ([]types.Observation, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var obs []types.Observation
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: expected date and value, got %d fields", row, len(rec))
		}

		ts, err := ParseTime(rec[0])
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", row, err)
		}

		v, err := parseValue(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row, err)
		}
		obs = append(obs, types.Observation{Time: ts, Value: v})
	}
	return obs, nil
}

// ParseTime parses a timestamp in any of Layouts.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return types.Missing(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	return v, nil
}
