package events

import (
	"time"
)

// DateLayout is the calendar date format used for every date column
const DateLayout = "2006-01-02"

// Event represents one cleaned user action
type Event struct {
	// Row is the position of the event in the source table
	Row       int
	UserID    string
	SessionID string
	// Timestamp is the zero time when the source value could not be parsed
	Timestamp time.Time
	Action    string
	Value     *float64
	Category  string
}

// HasTimestamp reports whether the event carries a usable timestamp
func (e Event) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// Date returns the calendar date of the event, or "" when the timestamp is missing
func (e Event) Date() string {
	if !e.HasTimestamp() {
		return ""
	}
	return e.Timestamp.Format(DateLayout)
}

// HasSession reports whether the event belongs to an identifiable session
func (e Event) HasSession() bool {
	return e.SessionID != ""
}

// HasUser reports whether the event carries a user id
func (e Event) HasUser() bool {
	return e.UserID != ""
}

// ValueOr returns the monetary value or def when the event has none
func (e Event) ValueOr(def float64) float64 {
	if e.Value == nil {
		return def
	}
	return *e.Value
}

// Before orders events by timestamp. Missing timestamps sort last and
// ties fall back to source row order.
func Before(a, b Event) bool {
	aok, bok := a.HasTimestamp(), b.HasTimestamp()
	switch {
	case aok && bok:
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
	case aok != bok:
		return aok
	}
	return a.Row < b.Row
}
