package metrics

import (
	"slices"

	"github.com/PraWek/BusinessTelemetry/internal/events"
	"github.com/PraWek/BusinessTelemetry/internal/session"
)

// Reached is the set of steps one session passed through
type Reached struct {
	SessionID string
	UserID    string
	Steps     []string
}

// FunnelRow is one step of the funnel table
type FunnelRow struct {
	Step               string
	SessionsReached    int
	UniqueUsersReached int
}

// FunnelTable is the ordered funnel result
type FunnelTable struct {
	Rows []FunnelRow
}

// FunnelColumns is the funnel table header
var FunnelColumns = []string{"step", "sessions_reached", "unique_users_reached"}

// MatchSession walks the step list with a single forward cursor over actions.
// Each step consumes its first occurrence at or after the cursor; the first
// miss ends matching. Reached steps are returned in step order.
func MatchSession(actions []string, steps Steps) []string {
	reached := make([]string, 0, len(steps))
	pos := 0
	for _, step := range steps {
		i := indexFrom(actions, step, pos)
		if i < 0 {
			break
		}
		reached = append(reached, step)
		pos = i + 1
	}
	return reached
}

func indexFrom(actions []string, target string, from int) int {
	if from >= len(actions) {
		return -1
	}
	if i := slices.Index(actions[from:], target); i >= 0 {
		return from + i
	}
	return -1
}

// MatchSessions runs MatchSession for every session. Entries without a
// timestamp are skipped; the rest of the session is still matched.
func MatchSessions(sessions []session.Session, steps Steps) []Reached {
	out := make([]Reached, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Reached{
			SessionID: s.ID,
			UserID:    s.UserID(),
			Steps:     MatchSession(s.Actions(), steps),
		})
	}
	return out
}

// AggregateFunnel counts distinct sessions and users per reached step.
// Blank user ids are not counted as users.
// Only steps reached by at least one session appear, in step order.
func AggregateFunnel(reached []Reached, steps Steps) FunnelTable {
	sessionsByStep := make(map[string]map[string]struct{})
	usersByStep := make(map[string]map[string]struct{})

	for _, r := range reached {
		for _, step := range r.Steps {
			if sessionsByStep[step] == nil {
				sessionsByStep[step] = make(map[string]struct{})
				usersByStep[step] = make(map[string]struct{})
			}
			sessionsByStep[step][r.SessionID] = struct{}{}
			if r.UserID != "" {
				usersByStep[step][r.UserID] = struct{}{}
			}
		}
	}

	table := FunnelTable{Rows: []FunnelRow{}}
	for _, step := range steps {
		sessions, ok := sessionsByStep[step]
		if !ok {
			continue
		}
		table.Rows = append(table.Rows, FunnelRow{
			Step:               step,
			SessionsReached:    len(sessions),
			UniqueUsersReached: len(usersByStep[step]),
		})
	}
	return table
}

// ComputeFunnel groups the table into sessions, matches each against the
// step list and aggregates the result.
func ComputeFunnel(table *events.Table, steps Steps, fields events.Fields) (FunnelTable, error) {
	if err := requireColumns(table, fields); err != nil {
		return FunnelTable{}, err
	}
	sessions, err := session.Group(table, fields)
	if err != nil {
		return FunnelTable{}, err
	}
	return AggregateFunnel(MatchSessions(sessions, steps), steps), nil
}
