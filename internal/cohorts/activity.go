package cohorts

import (
	"sort"
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// Activity segments
const (
	SegmentNew       = "New"
	SegmentReturning = "Returning"
	SegmentChurnRisk = "Churn-risk"
	SegmentActive    = "Active"
)

// ActivityOptions tunes the segmentation rules
type ActivityOptions struct {
	// Now is the reference instant; zero means time.Now()
	Now               time.Time
	ChurnDays         int
	ActiveMinSessions int
	ActiveRecencyDays int
}

// DefaultActivityOptions returns the standard thresholds
func DefaultActivityOptions() ActivityOptions {
	return ActivityOptions{
		ChurnDays:         90,
		ActiveMinSessions: 5,
		ActiveRecencyDays: 30,
	}
}

// ActivityRow is the activity label of one user
type ActivityRow struct {
	UserID          string
	FirstVisitDay   string
	LastVisitDate   string
	NSessions       int
	ActivitySegment string
}

// ActivityColumns is the activity table header
var ActivityColumns = []string{"userid", "first_visit_day", "last_visit_date", "n_sessions", "activity_segment"}

type userActivity struct {
	first    time.Time
	last     time.Time
	sessions map[string]struct{}
}

// LabelActivity assigns every user one segment. Rules apply in order and
// later ones win: Returning by default, New when the first visit is today,
// Churn-risk when the last visit is older than ChurnDays, Active when the user
// has at least ActiveMinSessions sessions and visited within ActiveRecencyDays.
// Events without a user id are ignored.
func LabelActivity(table *events.Table, fields events.Fields, opts ActivityOptions) ([]ActivityRow, error) {
	fields = fields.WithDefaults()
	if err := table.RequireColumns(fields.User, fields.Session, fields.Timestamp); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	today := now.Format(events.DateLayout)
	churnCutoff := now.AddDate(0, 0, -opts.ChurnDays).Format(events.DateLayout)
	activeCutoff := now.AddDate(0, 0, -opts.ActiveRecencyDays).Format(events.DateLayout)

	users := make(map[string]*userActivity)
	for _, e := range table.Events {
		if !e.HasUser() {
			continue
		}
		u, ok := users[e.UserID]
		if !ok {
			u = &userActivity{sessions: make(map[string]struct{})}
			users[e.UserID] = u
		}
		if e.HasSession() {
			u.sessions[e.SessionID] = struct{}{}
		}
		if !e.HasTimestamp() {
			continue
		}
		if u.first.IsZero() || e.Timestamp.Before(u.first) {
			u.first = e.Timestamp
		}
		if u.last.IsZero() || e.Timestamp.After(u.last) {
			u.last = e.Timestamp
		}
	}

	rows := make([]ActivityRow, 0, len(users))
	for id, u := range users {
		row := ActivityRow{
			UserID:          id,
			NSessions:       len(u.sessions),
			ActivitySegment: SegmentReturning,
		}
		if !u.first.IsZero() {
			row.FirstVisitDay = u.first.Format(events.DateLayout)
			row.LastVisitDate = u.last.Format(events.DateLayout)
		}
		if row.FirstVisitDay != "" && row.FirstVisitDay == today {
			row.ActivitySegment = SegmentNew
		}
		if row.LastVisitDate != "" && row.LastVisitDate < churnCutoff {
			row.ActivitySegment = SegmentChurnRisk
		}
		if row.LastVisitDate != "" && row.NSessions >= opts.ActiveMinSessions && row.LastVisitDate >= activeCutoff {
			row.ActivitySegment = SegmentActive
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}
