package report

import (
	"math"
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/metrics"
)

// Kind is the value type of a table column
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindTime
	KindBool
)

// Column describes one column of an exported table
type Column struct {
	Name string
	Kind Kind
}

// Table is the flat, sink-independent form of a report table. Cell values
// are string, int, float64 (NaN for undefined), time.Time (zero for missing)
// or bool, according to the column kind.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the header of the table
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table names, also used as CSV file stems and ClickHouse table names
const (
	TableSessions      = "sessions"
	TableEvents        = "cleaned_events"
	TableProductToCart = "transitions_product_to_cart"
	TableFunnel        = "funnel"
	TableKPIs          = "kpis_by_date"
	TableSankey        = "sankey"
	TableConversion    = "conversion_daily"
	TableActivity      = "activity_labeled"
	TableRetention     = "cohort_retention"
)

func columns(kind Kind, names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Kind: kind}
	}
	return cols
}

// Tables flattens the report into its exportable tables, in a fixed order
func (r *Report) Tables() []Table {
	return []Table{
		r.sessionsTable(),
		r.eventsTable(),
		r.productToCartTable(),
		r.FunnelTable(),
		r.kpisTable(),
		r.SankeyTable(),
		r.ConversionTable(),
		r.activityTable(),
		r.retentionTable(),
	}
}

func (r *Report) sessionsTable() Table {
	t := Table{
		Name: TableSessions,
		Columns: []Column{
			{"sessionid", KindString},
			{"userid", KindString},
			{"session_start", KindTime},
			{"session_end", KindTime},
			{"session_duration", KindFloat},
			{"events_count", KindInt},
		},
		Rows: make([][]any, 0, len(r.Sessions)),
	}
	for _, s := range r.Sessions {
		t.Rows = append(t.Rows, []any{s.SessionID, s.UserID, s.StartedAt, s.EndedAt, s.DurationSeconds(), s.EventsCount})
	}
	return t
}

func (r *Report) eventsTable() Table {
	t := Table{
		Name: TableEvents,
		Columns: []Column{
			{"userid", KindString},
			{"sessionid", KindString},
			{"timestamp", KindTime},
			{"date", KindString},
			{"action", KindString},
			{"category", KindString},
			{"value", KindFloat},
			{"session_step_number", KindInt},
			{"prev_action_in_session", KindString},
			{"next_action_in_session", KindString},
			{"prev_ts_in_session", KindTime},
			{"next_ts_in_session", KindTime},
			{"session_duration", KindFloat},
			{"product_to_cart", KindBool},
			{"basket_size", KindInt},
			{"avg_time_between_cart_and_checkout", KindFloat},
		},
		Rows: make([][]any, 0, len(r.Features)),
	}
	for _, f := range r.Features {
		t.Rows = append(t.Rows, []any{
			f.UserID, f.SessionID, f.Timestamp, f.Date(), f.Action, f.Category, f.ValueOr(math.NaN()),
			f.SessionStepNumber, f.PrevAction, f.NextAction, f.PrevTimestamp, f.NextTimestamp,
			f.SessionDuration, f.ProductToCart, f.BasketSize, f.AvgCartToCheckout,
		})
	}
	return t
}

func (r *Report) productToCartTable() Table {
	t := Table{
		Name: TableProductToCart,
		Columns: []Column{
			{"userid", KindString},
			{"sessionid", KindString},
			{"prev_action_in_session", KindString},
			{"action", KindString},
			{"timestamp", KindTime},
		},
		Rows: make([][]any, 0, len(r.ProductToCart)),
	}
	for _, f := range r.ProductToCart {
		t.Rows = append(t.Rows, []any{f.UserID, f.SessionID, f.PrevAction, f.Action, f.Timestamp})
	}
	return t
}

// FunnelTable flattens the funnel: step, sessions_reached, unique_users_reached
func (r *Report) FunnelTable() Table {
	t := Table{
		Name:    TableFunnel,
		Columns: append([]Column{{Name: metrics.FunnelColumns[0], Kind: KindString}}, columns(KindInt, metrics.FunnelColumns[1:]...)...),
		Rows:    make([][]any, 0, len(r.Funnel.Rows)),
	}
	for _, row := range r.Funnel.Rows {
		t.Rows = append(t.Rows, []any{row.Step, row.SessionsReached, row.UniqueUsersReached})
	}
	return t
}

// SankeyTable flattens the transitions: action, next_action, users
func (r *Report) SankeyTable() Table {
	t := Table{
		Name: TableSankey,
		Columns: []Column{
			{metrics.TransitionColumns[0], KindString},
			{metrics.TransitionColumns[1], KindString},
			{metrics.TransitionColumns[2], KindInt},
		},
		Rows: make([][]any, 0, len(r.Transitions.Rows)),
	}
	for _, row := range r.Transitions.Rows {
		t.Rows = append(t.Rows, []any{row.Action, row.NextAction, row.Users})
	}
	return t
}

// ConversionTable flattens the daily conversion: cohort_date, one count per
// step, the adjacent ratios and cr_full.
func (r *Report) ConversionTable() Table {
	cols := []Column{{Name: "cohort_date", Kind: KindString}}
	cols = append(cols, columns(KindInt, r.Steps...)...)
	cols = append(cols, columns(KindFloat, metrics.RatioColumns(r.Steps)...)...)
	cols = append(cols, Column{Name: "cr_full", Kind: KindFloat})

	t := Table{
		Name:    TableConversion,
		Columns: cols,
		Rows:    make([][]any, 0, len(r.Conversion.Rows)),
	}
	for _, row := range r.Conversion.Rows {
		values := make([]any, 0, len(cols))
		values = append(values, row.CohortDate)
		for _, c := range row.Counts {
			values = append(values, c)
		}
		for _, ratio := range row.Ratios {
			values = append(values, ratio)
		}
		values = append(values, row.Full)
		t.Rows = append(t.Rows, values)
	}
	return t
}

func (r *Report) kpisTable() Table {
	t := Table{
		Name: TableKPIs,
		Columns: []Column{
			{"date", KindString},
			{"orders_count", KindInt},
			{"gmv", KindFloat},
			{"sessions_count", KindInt},
			{"buyers_count", KindInt},
			{"dau", KindInt},
			{"aov", KindFloat},
		},
		Rows: make([][]any, 0, len(r.KPIs)),
	}
	for _, k := range r.KPIs {
		t.Rows = append(t.Rows, []any{k.Date, k.OrdersCount, k.GMV, k.SessionsCount, k.BuyersCount, k.DAU, k.AOV})
	}
	return t
}

func (r *Report) activityTable() Table {
	t := Table{
		Name: TableActivity,
		Columns: []Column{
			{"userid", KindString},
			{"first_visit_day", KindString},
			{"last_visit_date", KindString},
			{"n_sessions", KindInt},
			{"activity_segment", KindString},
		},
		Rows: make([][]any, 0, len(r.Activity)),
	}
	for _, a := range r.Activity {
		t.Rows = append(t.Rows, []any{a.UserID, a.FirstVisitDay, a.LastVisitDate, a.NSessions, a.ActivitySegment})
	}
	return t
}

func (r *Report) retentionTable() Table {
	t := Table{
		Name: TableRetention,
		Columns: []Column{
			{"cohort_month", KindTime},
			{"cohort_lifetime_days", KindInt},
			{"retained_users", KindInt},
			{"cohort_size", KindInt},
		},
		Rows: make([][]any, 0, len(r.Retention)),
	}
	for _, row := range r.Retention {
		t.Rows = append(t.Rows, []any{row.CohortMonth, row.CohortLifetimeDays, row.RetainedUsers, row.CohortSize})
	}
	return t
}

// FormatTime renders a timestamp cell, "" for the missing sentinel
func FormatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format("2006-01-02 15:04:05.999999")
}
