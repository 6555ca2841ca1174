package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"coinpulse/internal/domain"
)

const (
	colTimestamp = "timestamp"
	colCoin      = "coin"
)

// ErrCorruptDataset means the persisted file cannot be read as a dataset at
// all (no usable header or broken CSV framing).
var ErrCorruptDataset = errors.New("corrupt dataset")

// Older files written by the collector script used these column names.
var legacyColumns = map[string]domain.Field{
	"change_24h_%": domain.FieldChange24hPct,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// DecodeStats counts the row-level recoveries made while decoding.
type DecodeStats struct {
	Rows              int
	InvalidTimestamps int
	BadValues         int
}

// Header returns the dataset column names in file order.
func Header() []string {
	h := make([]string, 0, len(domain.Columns)+2)
	h = append(h, colTimestamp, colCoin)
	for _, f := range domain.Columns {
		h = append(h, string(f))
	}
	return h
}

// Encode writes rows as CSV with a header. Missing values are empty cells and
// invalid timestamps are written as "invalid".
func Encode(w io.Writer, rows []domain.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}

	record := make([]string, len(domain.Columns)+2)
	for _, row := range rows {
		record[0] = row.Timestamp.String()
		record[1] = row.Coin
		for i, f := range domain.Columns {
			record[i+2] = formatValue(row.Get(f))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a dataset. Columns are matched by name, so files with extra,
// reordered or absent numeric columns load. Unparseable timestamps become the
// invalid marker and unparseable numbers become missing.
func Decode(r io.Reader) ([]domain.Observation, DecodeStats, error) {
	var stats DecodeStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("%w: read header: %v", ErrCorruptDataset, err)
	}

	tsIdx, coinIdx := -1, -1
	fields := make(map[int]domain.Field)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case colTimestamp:
			tsIdx = i
		case colCoin:
			coinIdx = i
		default:
			if f, ok := legacyColumns[name]; ok {
				fields[i] = f
				continue
			}
			for _, f := range domain.Columns {
				if string(f) == name {
					fields[i] = f
				}
			}
		}
	}
	if tsIdx < 0 || coinIdx < 0 {
		return nil, stats, fmt.Errorf("%w: header lacks %s/%s columns", ErrCorruptDataset, colTimestamp, colCoin)
	}

	var rows []domain.Observation
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %v", ErrCorruptDataset, err)
		}

		row := domain.Observation{
			Timestamp: parseTimestamp(cell(record, tsIdx)),
			Coin:      cell(record, coinIdx),
		}
		if !row.Timestamp.Valid {
			stats.InvalidTimestamps++
		}
		for i, f := range fields {
			v, ok := parseValue(cell(record, i))
			if !ok {
				stats.BadValues++
			}
			row.Set(f, v)
		}
		rows = append(rows, row)
	}
	stats.Rows = len(rows)
	return rows, stats, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseTimestamp(s string) domain.Timestamp {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.At(t)
		}
	}
	return domain.InvalidTimestamp
}

// parseValue returns nil for missing cells. ok is false when the cell held
// something that is not a number.
func parseValue(s string) (*float64, bool) {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil, false
	}
	return &v, true
}

func formatValue(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
