package metrics

import (
	"sort"

	"github.com/PraWek/BusinessTelemetry/internal/events"
	"github.com/PraWek/BusinessTelemetry/internal/session"
)

// TransitionRow counts the distinct users who moved from Action straight to NextAction
type TransitionRow struct {
	Action     string
	NextAction string
	Users      int
}

// TransitionTable is the sankey result, sorted by (action, next_action)
type TransitionTable struct {
	Rows []TransitionRow
}

// TransitionColumns is the transition table header
var TransitionColumns = []string{"action", "next_action", "users"}

type transitionKey struct {
	action string
	next   string
}

// ExtractTransitions pairs every timed entry with the entry immediately after
// it in the same session. Pairs with an unranked side are dropped, and when
// requireStepIncrease is set so are pairs that move backwards in rank.
// Blank user ids are not counted.
func ExtractTransitions(sessions []session.Session, ranks map[string]int, requireStepIncrease bool) TransitionTable {
	users := make(map[transitionKey]map[string]struct{})

	for _, s := range sessions {
		timed := s.Timed()
		for i := 0; i+1 < len(timed); i++ {
			cur, next := timed[i], timed[i+1]
			curRank, ok := ranks[cur.Action]
			if !ok {
				continue
			}
			nextRank, ok := ranks[next.Action]
			if !ok {
				continue
			}
			if requireStepIncrease && nextRank < curRank {
				continue
			}
			key := transitionKey{action: cur.Action, next: next.Action}
			if users[key] == nil {
				users[key] = make(map[string]struct{})
			}
			if cur.UserID != "" {
				users[key][cur.UserID] = struct{}{}
			}
		}
	}

	table := TransitionTable{Rows: make([]TransitionRow, 0, len(users))}
	for key, set := range users {
		table.Rows = append(table.Rows, TransitionRow{
			Action:     key.action,
			NextAction: key.next,
			Users:      len(set),
		})
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		return a.NextAction < b.NextAction
	})
	return table
}

// ComputeTransitions groups the table into sessions and extracts adjacent transitions
func ComputeTransitions(table *events.Table, ranks map[string]int, fields events.Fields, requireStepIncrease bool) (TransitionTable, error) {
	if err := requireColumns(table, fields); err != nil {
		return TransitionTable{}, err
	}
	sessions, err := session.Group(table, fields)
	if err != nil {
		return TransitionTable{}, err
	}
	return ExtractTransitions(sessions, ranks, requireStepIncrease), nil
}
