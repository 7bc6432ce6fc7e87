package metrics

import (
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// at returns base shifted by the given number of days and minutes
func at(days, minutes int) time.Time {
	return base.AddDate(0, 0, days).Add(time.Duration(minutes) * time.Minute)
}

type row struct {
	user    string
	session string
	ts      time.Time
	action  string
}

func tableOf(rows ...row) *events.Table {
	evs := make([]events.Event, len(rows))
	for i, r := range rows {
		evs[i] = events.Event{
			Row:       i,
			UserID:    r.user,
			SessionID: r.session,
			Timestamp: r.ts,
			Action:    r.action,
		}
	}
	return events.NewTable([]string{"userid", "sessionid", "timestamp", "action", "value"}, evs)
}

// sessionOf builds one session whose events are one minute apart
func sessionOf(user, session string, actions ...string) []row {
	rows := make([]row, len(actions))
	for i, a := range actions {
		rows[i] = row{user: user, session: session, ts: at(0, i), action: a}
	}
	return rows
}

func mustSteps(names ...string) Steps {
	s, err := NewSteps(names...)
	if err != nil {
		panic(err)
	}
	return s
}

var shopSteps = mustSteps("search", "product", "category", "mainpage", "cart", "checkout", "confirmation")
