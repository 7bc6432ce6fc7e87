package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PraWek/BusinessTelemetry/internal/report"
)

// CSVSink writes every report table to <dir>/<table>.csv
type CSVSink struct {
	dir string
}

// NewCSVSink creates the output directory if needed
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVSink{dir: dir}, nil
}

func (s *CSVSink) Name() string { return "csv" }

// Write saves each table; a failing table does not stop the others
func (s *CSVSink) Write(ctx context.Context, r *report.Report) error {
	var firstErr error
	for _, t := range r.Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(s.dir, t.Name+".csv")
		if err := writeTableFile(path, t); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to save table")
			if firstErr == nil {
				firstErr = fmt.Errorf("save %s: %w", t.Name, err)
			}
			continue
		}
		log.Debug().Str("path", path).Int("rows", len(t.Rows)).Msg("Saved table")
	}
	return firstErr
}

func writeTableFile(path string, t report.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTable(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTable writes the header and rows of t as CSV
func WriteTable(w io.Writer, t report.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = FormatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatCell renders one cell. NaN and missing timestamps become empty cells.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return report.FormatTime(x)
	default:
		return fmt.Sprint(x)
	}
}
