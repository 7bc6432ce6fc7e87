package events

import (
	"fmt"
	"slices"
)

// Fields names the source columns that carry the core event attributes
type Fields struct {
	Session   string `yaml:"session"`
	User      string `yaml:"user"`
	Timestamp string `yaml:"timestamp"`
	Action    string `yaml:"action"`
}

// DefaultFields returns the conventional column names
func DefaultFields() Fields {
	return Fields{
		Session:   "sessionid",
		User:      "userid",
		Timestamp: "timestamp",
		Action:    "action",
	}
}

// WithDefaults fills every empty field name with its conventional default
func (f Fields) WithDefaults() Fields {
	def := DefaultFields()
	if f.Session == "" {
		f.Session = def.Session
	}
	if f.User == "" {
		f.User = def.User
	}
	if f.Timestamp == "" {
		f.Timestamp = def.Timestamp
	}
	if f.Action == "" {
		f.Action = def.Action
	}
	return f
}

// MissingColumnError is returned when a required column is absent from a table
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found in table", e.Column)
}

// Table is the immutable in-memory event table shared by every analytics pass
type Table struct {
	Columns []string
	Events  []Event
}

// NewTable creates a table over the given source columns and events
func NewTable(columns []string, events []Event) *Table {
	return &Table{
		Columns: slices.Clone(columns),
		Events:  events,
	}
}

// HasColumn reports whether the source table carried the named column
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// RequireColumns returns a *MissingColumnError for the first absent column
func (t *Table) RequireColumns(names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return &MissingColumnError{Column: name}
		}
	}
	return nil
}

// Len returns the number of events
func (t *Table) Len() int {
	return len(t.Events)
}

// Filter returns a new table holding only the events that satisfy keep
func (t *Table) Filter(keep func(Event) bool) *Table {
	out := make([]Event, 0, len(t.Events))
	for _, e := range t.Events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return &Table{Columns: t.Columns, Events: out}
}
