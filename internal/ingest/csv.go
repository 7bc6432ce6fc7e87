package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// indexColumn is the unnamed index column left behind by dataframe exports
const indexColumn = "Unnamed: 0"

// Options controls how raw CSV rows become events
type Options struct {
	Fields         events.Fields
	ValueColumn    string
	CategoryColumn string
	// CategoryFill replaces empty categories
	CategoryFill string
}

// DefaultOptions returns the conventional column names
func DefaultOptions() Options {
	return Options{
		Fields:         events.DefaultFields(),
		ValueColumn:    "value",
		CategoryColumn: "category",
		CategoryFill:   "unknown",
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	o.Fields = o.Fields.WithDefaults()
	if o.ValueColumn == "" {
		o.ValueColumn = def.ValueColumn
	}
	if o.CategoryColumn == "" {
		o.CategoryColumn = def.CategoryColumn
	}
	if o.CategoryFill == "" {
		o.CategoryFill = def.CategoryFill
	}
	return o
}

// Result is a loaded event table plus ingestion statistics
type Result struct {
	Table                 *events.Table
	Rows                  int
	UnparseableTimestamps int
	// BlankSessionIDs counts rows that belong to no session
	BlankSessionIDs int
	// BlankUserIDs counts rows that are attributed to no user
	BlankUserIDs int
}

// ReadFile loads a telemetry CSV from disk
func ReadFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if res.UnparseableTimestamps > 0 {
		log.Warn().
			Str("path", path).
			Int("count", res.UnparseableTimestamps).
			Msg("Unparseable timestamps coerced to missing")
	}
	if res.BlankSessionIDs > 0 {
		log.Warn().
			Str("path", path).
			Int("count", res.BlankSessionIDs).
			Msg("Rows without a session id dropped from session analytics")
	}
	if res.BlankUserIDs > 0 {
		log.Warn().
			Str("path", path).
			Int("count", res.BlankUserIDs).
			Msg("Rows without a user id excluded from user counts")
	}
	log.Info().
		Str("path", path).
		Int("rows", res.Rows).
		Strs("columns", res.Table.Columns).
		Msg("Telemetry loaded")

	return res, nil
}

// ReadCSV parses a header row followed by event rows
func ReadCSV(r io.Reader, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Result{Table: events.NewTable(nil, []events.Event{})}, nil
		}
		return nil, err
	}
	columns := make([]string, 0, len(header))
	for _, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == indexColumn {
			h = ""
		}
		columns = append(columns, h)
	}

	res := &Result{}
	var evs []events.Event
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		raw := make(map[string]string, len(columns))
		for i, col := range columns {
			if col == "" || i >= len(record) {
				continue
			}
			raw[col] = record[i]
		}

		event, ok := TransformRow(raw, res.Rows, opts)
		if !ok {
			res.UnparseableTimestamps++
		}
		if !event.HasSession() {
			res.BlankSessionIDs++
		}
		if !event.HasUser() {
			res.BlankUserIDs++
		}
		evs = append(evs, event)
		res.Rows++
	}

	kept := columns[:0:0]
	for _, col := range columns {
		if col != "" {
			kept = append(kept, col)
		}
	}
	if evs == nil {
		evs = []events.Event{}
	}
	res.Table = events.NewTable(kept, evs)
	return res, nil
}

// TransformRow converts one raw row into an event. The boolean is false when
// the timestamp could not be parsed and was coerced to the zero time.
func TransformRow(raw map[string]string, row int, opts Options) (events.Event, bool) {
	opts = opts.withDefaults()

	event := events.Event{
		Row:       row,
		UserID:    getString(raw, opts.Fields.User),
		SessionID: getString(raw, opts.Fields.Session),
		Action:    getString(raw, opts.Fields.Action),
		Value:     getFloat64Ptr(raw, opts.ValueColumn),
		Category:  getString(raw, opts.CategoryColumn),
	}
	if event.Category == "" {
		event.Category = opts.CategoryFill
	}

	ts, ok := ParseTimestamp(getString(raw, opts.Fields.Timestamp))
	event.Timestamp = ts
	return event, ok
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"20060102",
}

// ParseTimestamp parses the supported timestamp formats and unix seconds or
// milliseconds. An explicit offset is kept; values without one are UTC.
// Unparseable input yields the zero time and false.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "nat") {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	// Epochs need at least 10 digits; shorter digit runs are not timestamps
	if len(s) < 10 {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		// Values past year 2286 in seconds are taken as milliseconds
		if n > 1e10 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func getString(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func getFloat64Ptr(m map[string]string, key string) *float64 {
	v := getString(m, key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}
