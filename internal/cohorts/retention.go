package cohorts

import (
	"sort"
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// RetentionRow counts the cohort users seen a given number of days after the
// start of their cohort month.
type RetentionRow struct {
	CohortMonth        time.Time
	CohortLifetimeDays int
	RetainedUsers      int
	CohortSize         int
}

// RetentionColumns is the retention table header
var RetentionColumns = []string{"cohort_month", "cohort_lifetime_days", "retained_users", "cohort_size"}

type retentionKey struct {
	month time.Time
	days  int
}

// MonthRetention assigns each user to the month of their first event and
// counts distinct retained users per (cohort month, lifetime day).
func MonthRetention(table *events.Table, fields events.Fields) ([]RetentionRow, error) {
	fields = fields.WithDefaults()
	if err := table.RequireColumns(fields.Timestamp); err != nil {
		return nil, err
	}

	first := make(map[string]time.Time)
	for _, e := range table.Events {
		if !e.HasTimestamp() || !e.HasUser() {
			continue
		}
		if ts, ok := first[e.UserID]; !ok || e.Timestamp.Before(ts) {
			first[e.UserID] = e.Timestamp
		}
	}

	sizes := make(map[time.Time]int)
	for _, ts := range first {
		sizes[monthStart(ts)]++
	}

	retained := make(map[retentionKey]map[string]struct{})
	for _, e := range table.Events {
		ts, ok := first[e.UserID]
		if !ok || !e.HasTimestamp() {
			continue
		}
		month := monthStart(ts)
		key := retentionKey{month: month, days: int(wallClock(e.Timestamp).Sub(month) / (24 * time.Hour))}
		if retained[key] == nil {
			retained[key] = make(map[string]struct{})
		}
		retained[key][e.UserID] = struct{}{}
	}

	rows := make([]RetentionRow, 0, len(retained))
	for key, users := range retained {
		rows = append(rows, RetentionRow{
			CohortMonth:        key.month,
			CohortLifetimeDays: key.days,
			RetainedUsers:      len(users),
			CohortSize:         sizes[key.month],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CohortMonth.Equal(rows[j].CohortMonth) {
			return rows[i].CohortMonth.Before(rows[j].CohortMonth)
		}
		return rows[i].CohortLifetimeDays < rows[j].CohortLifetimeDays
	})
	return rows, nil
}

// monthStart returns the first day of the month as seen in the timestamp's
// own location, expressed as midnight UTC so cohort keys compare equal
func monthStart(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// wallClock reinterprets the local date and time of ts as UTC
func wallClock(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
}
