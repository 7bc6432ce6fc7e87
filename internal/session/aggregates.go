package session

import (
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// Summary holds per-session aggregates
type Summary struct {
	SessionID   string
	UserID      string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
	EventsCount int
}

// DurationSeconds returns the session duration in seconds, 0 when unknown
func (s Summary) DurationSeconds() float64 {
	return s.Duration.Seconds()
}

// Aggregate computes start, end, duration and timed event count for every session
func Aggregate(table *events.Table, fields events.Fields) ([]Summary, error) {
	sessions, err := Group(table, fields)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summary := Summary{
			SessionID: s.ID,
			UserID:    s.UserID(),
		}
		timed := s.Timed()
		if len(timed) > 0 {
			summary.StartedAt = timed[0].Timestamp
			summary.EndedAt = timed[len(timed)-1].Timestamp
			summary.Duration = summary.EndedAt.Sub(summary.StartedAt)
			summary.EventsCount = len(timed)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// DurationIndex maps session id to duration in seconds
func DurationIndex(summaries []Summary) map[string]float64 {
	index := make(map[string]float64, len(summaries))
	for _, s := range summaries {
		index[s.SessionID] = s.DurationSeconds()
	}
	return index
}
