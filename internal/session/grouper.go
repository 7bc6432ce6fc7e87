package session

import (
	"sort"
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// Entry is one event within a session, reduced to what ordering-sensitive passes need
type Entry struct {
	Action    string
	Timestamp time.Time
	UserID    string
	Row       int
}

// HasTimestamp reports whether the entry can take part in ordering
func (e Entry) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// Session is the time-ordered event sequence of one session id
type Session struct {
	ID      string
	Entries []Entry
}

// UserID returns the first non-blank user of the session; sessions are
// assumed single-user
func (s Session) UserID() string {
	for _, e := range s.Entries {
		if e.UserID != "" {
			return e.UserID
		}
	}
	return ""
}

// Timed returns the entries with a usable timestamp, in order
func (s Session) Timed() []Entry {
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.HasTimestamp() {
			out = append(out, e)
		}
	}
	return out
}

// Actions returns the action sequence of the timed entries
func (s Session) Actions() []string {
	timed := s.Timed()
	actions := make([]string, len(timed))
	for i, e := range timed {
		actions[i] = e.Action
	}
	return actions
}

// Partition splits the table into per-session event slices. Events are sorted
// by timestamp, ties keep input order and missing timestamps sort last.
// Partitions come back ordered by session id. Events with a blank session id
// belong to no session and are left out.
func Partition(table *events.Table, fields events.Fields) ([][]events.Event, error) {
	fields = fields.WithDefaults()
	if err := table.RequireColumns(fields.Session); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var parts [][]events.Event
	for _, e := range table.Events {
		if !e.HasSession() {
			continue
		}
		i, ok := index[e.SessionID]
		if !ok {
			i = len(parts)
			index[e.SessionID] = i
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], e)
	}

	for _, part := range parts {
		sort.SliceStable(part, func(a, b int) bool {
			return events.Before(part[a], part[b])
		})
	}
	sort.Slice(parts, func(a, b int) bool {
		return parts[a][0].SessionID < parts[b][0].SessionID
	})
	return parts, nil
}

// Group partitions the table by session id and reduces each event to an Entry
func Group(table *events.Table, fields events.Fields) ([]Session, error) {
	parts, err := Partition(table, fields)
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(parts))
	for _, part := range parts {
		s := Session{
			ID:      part[0].SessionID,
			Entries: make([]Entry, len(part)),
		}
		for i, e := range part {
			s.Entries[i] = Entry{
				Action:    e.Action,
				Timestamp: e.Timestamp,
				UserID:    e.UserID,
				Row:       e.Row,
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
