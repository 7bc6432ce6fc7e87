package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog/log"

	"github.com/PraWek/BusinessTelemetry/internal/config"
	"github.com/PraWek/BusinessTelemetry/internal/report"
)

// ClickHouse exports report tables into ClickHouse, one table per report
// table, every row tagged with the run id.
type ClickHouse struct {
	conn driver.Conn
}

func NewClickHouse(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) Name() string { return "clickhouse" }

// Write creates missing tables and batch-inserts every report table
func (c *ClickHouse) Write(ctx context.Context, r *report.Report) error {
	for _, t := range r.Tables() {
		if err := c.conn.Exec(ctx, CreateTableSQL(t)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
		if err := c.InsertTable(ctx, r, t); err != nil {
			return fmt.Errorf("insert %s: %w", t.Name, err)
		}
	}
	return nil
}

// InsertTable appends every row of t in a single batch
func (c *ClickHouse) InsertTable(ctx context.Context, r *report.Report, t report.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, InsertSQL(t))
	if err != nil {
		return err
	}

	for _, row := range t.Rows {
		if err := batch.Append(RowValues(r, t, row)...); err != nil {
			return err
		}
	}

	if err := batch.Send(); err != nil {
		return err
	}
	log.Debug().Str("table", t.Name).Int("count", len(t.Rows)).Msg("Inserted rows into ClickHouse")
	return nil
}

// CreateTableSQL returns the DDL for a report table
func CreateTableSQL(t report.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(t.Name))
	b.WriteString("\trun_id UUID,\n\tgenerated_at DateTime64(3)")
	for _, col := range t.Columns {
		fmt.Fprintf(&b, ",\n\t%s %s", quoteIdent(col.Name), columnType(col.Kind))
	}
	b.WriteString("\n) ENGINE = MergeTree ORDER BY (run_id, generated_at)")
	return b.String()
}

// InsertSQL returns the batch insert statement for a report table
func InsertSQL(t report.Table) string {
	cols := make([]string, 0, len(t.Columns)+2)
	cols = append(cols, "run_id", "generated_at")
	for _, col := range t.Columns {
		cols = append(cols, quoteIdent(col.Name))
	}
	return "INSERT INTO " + quoteIdent(t.Name) + " (" + strings.Join(cols, ", ") + ")"
}

// RowValues converts one report row into driver values, prefixed with the
// run id and generation time.
func RowValues(r *report.Report, t report.Table, row []any) []any {
	values := make([]any, 0, len(t.Columns)+2)
	values = append(values, r.RunID, r.GeneratedAt)
	for i, col := range t.Columns {
		var v any
		if i < len(row) {
			v = row[i]
		}
		values = append(values, driverValue(col.Kind, v))
	}
	return values
}

func driverValue(kind report.Kind, v any) any {
	switch kind {
	case report.KindInt:
		if n, ok := v.(int); ok {
			return int64(n)
		}
		return int64(0)
	case report.KindBool:
		if b, ok := v.(bool); ok && b {
			return uint8(1)
		}
		return uint8(0)
	case report.KindTime:
		// DateTime64 cannot hold the zero time; missing timestamps map to the epoch
		if ts, ok := v.(time.Time); ok && !ts.IsZero() {
			return ts
		}
		return time.Unix(0, 0).UTC()
	case report.KindFloat:
		if f, ok := v.(float64); ok {
			return f
		}
		return float64(0)
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
}

func columnType(kind report.Kind) string {
	switch kind {
	case report.KindInt:
		return "Int64"
	case report.KindFloat:
		return "Float64"
	case report.KindTime:
		return "DateTime64(6)"
	case report.KindBool:
		return "UInt8"
	default:
		return "String"
	}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
