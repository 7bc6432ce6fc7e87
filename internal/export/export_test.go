package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PraWek/BusinessTelemetry/internal/metrics"
	"github.com/PraWek/BusinessTelemetry/internal/report"
)

var generatedAt = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

func testReport() *report.Report {
	return &report.Report{
		RunID:       uuid.MustParse("7b0e5c1e-4c8f-4a7e-9f5d-2f1d3c4b5a69"),
		GeneratedAt: generatedAt,
		Steps:       metrics.Steps{"search", "cart"},
		Funnel: metrics.FunnelTable{Rows: []metrics.FunnelRow{
			{Step: "search", SessionsReached: 3, UniqueUsersReached: 2},
			{Step: "cart", SessionsReached: 1, UniqueUsersReached: 1},
		}},
		Conversion: metrics.ConversionTable{
			Steps: metrics.Steps{"search", "cart"},
			Rows: []metrics.ConversionRow{
				{CohortDate: "2024-03-01", Counts: []int{2, 0}, Ratios: []float64{0}, Full: 0},
				{CohortDate: "2024-03-02", Counts: []int{0, 0}, Ratios: []float64{math.NaN()}, Full: math.NaN()},
			},
		},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testReport().ConversionTable()))

	assert.Equal(t,
		"cohort_date,search,cart,cr_search_to_cart,cr_full\n"+
			"2024-03-01,2,0,0,0\n"+
			"2024-03-02,0,0,,\n",
		buf.String())
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "cart", "cart"},
		{"int", 42, "42"},
		{"float", 0.25, "0.25"},
		{"nan", math.NaN(), ""},
		{"true", true, "1"},
		{"false", false, "0"},
		{"time", time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC), "2024-03-01 12:00:01"},
		{"missing time", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCell(tt.in))
		})
	}
}

func TestCSVSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewCSVSink(dir)
	require.NoError(t, err)
	assert.Equal(t, "csv", sink.Name())

	r := testReport()
	require.NoError(t, sink.Write(context.Background(), r))

	for _, tbl := range r.Tables() {
		assert.FileExists(t, filepath.Join(dir, tbl.Name+".csv"))
	}

	data, err := os.ReadFile(filepath.Join(dir, report.TableFunnel+".csv"))
	require.NoError(t, err)
	assert.Equal(t, "step,sessions_reached,unique_users_reached\nsearch,3,2\ncart,1,1\n", string(data))
}

func TestCSVSink_CanceledContext(t *testing.T) {
	sink, err := NewCSVSink(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Write(ctx, testReport()), context.Canceled)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Write(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w, "telemetry.reports")
	assert.Equal(t, "kafka", p.Name())

	r := testReport()
	require.NoError(t, p.Write(context.Background(), r))

	// two funnel rows and two conversion rows; every other table is empty
	require.Len(t, w.msgs, 4)

	first := w.msgs[0]
	assert.Equal(t, r.RunID.String(), string(first.Key))
	require.Len(t, first.Headers, 1)
	assert.Equal(t, "table", first.Headers[0].Key)
	assert.Equal(t, report.TableFunnel, string(first.Headers[0].Value))

	var payload struct {
		RunID       string         `json:"run_id"`
		Table       string         `json:"table"`
		GeneratedAt int64          `json:"generated_at"`
		Row         map[string]any `json:"row"`
	}
	require.NoError(t, json.Unmarshal(first.Value, &payload))
	assert.Equal(t, r.RunID.String(), payload.RunID)
	assert.Equal(t, report.TableFunnel, payload.Table)
	assert.Equal(t, generatedAt.UnixMilli(), payload.GeneratedAt)
	assert.Equal(t, map[string]any{"step": "search", "sessions_reached": 3.0, "unique_users_reached": 2.0}, payload.Row)

	last := w.msgs[3]
	require.NoError(t, json.Unmarshal(last.Value, &payload))
	assert.Equal(t, report.TableConversion, payload.Table)
	assert.Nil(t, payload.Row["cr_full"])
	assert.Contains(t, payload.Row, "cr_full")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: boom}, "telemetry.reports")
	assert.ErrorIs(t, p.Write(context.Background(), testReport()), boom)
}

func TestMessages_MissingTimestampIsNull(t *testing.T) {
	tbl := report.Table{
		Name:    "events",
		Columns: []report.Column{{Name: "timestamp", Kind: report.KindTime}},
		Rows:    [][]any{{time.Time{}}, {generatedAt}},
	}
	msgs, err := Messages(testReport(), tbl)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	var payload struct {
		Row map[string]any `json:"row"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &payload))
	assert.Nil(t, payload.Row["timestamp"])

	require.NoError(t, json.Unmarshal(msgs[1].Value, &payload))
	assert.Equal(t, "2024-03-02T08:00:00Z", payload.Row["timestamp"])
}
