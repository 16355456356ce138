package schedule

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/busly/routafare/core/logger"
)

var requiredColumns = []string{"route_id", "bus_route", "bus_type_num", "direction", "time_slot"}

// LoadFile reads raw schedule records from a CSV file. A missing or
// unreadable file is an error; the caller treats it as fatal.
func LoadFile(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: open source file: %w", err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", path, err)
	}
	return records, nil
}

// Read parses schedule rows from CSV data. The header row maps columns by
// name, extra columns are ignored, and rows that are too short or carry a
// non-integer bus type are skipped with a warning rather than failing the
// whole load.
func Read(r io.Reader) ([]RawRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var out []RawRecord
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if short(row, idx) {
			logger.Warn(context.Background(), "schedule", "row.skipped",
				slog.Int("row", line),
				slog.String("reason", "missing fields"),
			)
			continue
		}

		busType, err := strconv.Atoi(strings.TrimSpace(row[idx["bus_type_num"]]))
		if err != nil {
			logger.Warn(context.Background(), "schedule", "row.skipped",
				slog.Int("row", line),
				slog.String("reason", "bus_type_num not an integer"),
			)
			continue
		}

		out = append(out, RawRecord{
			RouteID:       strings.TrimSpace(row[idx["route_id"]]),
			RouteName:     strings.TrimSpace(row[idx["bus_route"]]),
			BusTypeNumber: busType,
			Direction:     strings.TrimSpace(row[idx["direction"]]),
			TimeSlot:      strings.TrimSpace(row[idx["time_slot"]]),
		})
	}

	logger.Debug(context.Background(), "schedule", "source.read",
		slog.Int("count", len(out)),
	)
	return out, nil
}

func short(row []string, idx map[string]int) bool {
	for _, col := range requiredColumns {
		if idx[col] >= len(row) {
			return true
		}
	}
	return false
}
