package series

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/enercast/internal/core"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// ReadCSV parses rows of "timestamp,price[,volume]". A header row is
// skipped when its first column is "timestamp", "time" or "date".
// Timestamps are RFC3339, "2006-01-02 15:04:05" or "2006-01-02" (UTC).
func ReadCSV(r io.Reader) ([]core.PricePoint, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var points []core.PricePoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrSeriesInvalid, err)
		}
		if line == 1 && isHeader(rec[0]) {
			continue
		}
		p, err := parseRecord(rec)
		if err != nil {
			return nil, core.WrapError(core.ErrSeriesInvalid, fmt.Errorf("line %d: %w", line, err))
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, core.ErrNoData
	}
	if err := Validate(points); err != nil {
		return nil, err
	}
	return points, nil
}

// LoadCSV reads a price series from a CSV file.
func LoadCSV(path string) ([]core.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func isHeader(col string) bool {
	col = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(col), "\ufeff"))
	return col == "timestamp" || col == "time" || col == "date"
}

func parseRecord(rec []string) (core.PricePoint, error) {
	if len(rec) < 2 {
		return core.PricePoint{}, fmt.Errorf("expected at least 2 columns, got %d", len(rec))
	}

	ts, err := parseTime(rec[0])
	if err != nil {
		return core.PricePoint{}, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return core.PricePoint{}, fmt.Errorf("invalid price %q", rec[1])
	}

	p := core.PricePoint{Time: ts, Price: price}
	if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return core.PricePoint{}, fmt.Errorf("invalid volume %q", rec[2])
		}
		p.Volume = &v
	}
	return p, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// File is a Provider backed by one CSV file per commodity, named
// "<commodity>.csv" inside Dir.
type File struct {
	Dir string
}

// FetchSeries loads and slices the commodity file.
func (f File) FetchSeries(ctx context.Context, commodity core.Commodity, from, to time.Time) ([]core.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.Dir, string(commodity)+".csv")
	points, err := LoadCSV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("commodity %q", commodity))
		}
		return nil, err
	}
	return Slice(points, from, to), nil
}
