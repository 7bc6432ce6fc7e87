package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

var (
	ErrEmptySteps    = errors.New("step list is empty")
	ErrDuplicateStep = errors.New("duplicate step in step list")
)

// Steps is the ordered funnel definition
type Steps []string

// NewSteps validates and copies a step list
func NewSteps(names ...string) (Steps, error) {
	if len(names) == 0 {
		return nil, ErrEmptySteps
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, name)
		}
		seen[name] = struct{}{}
	}
	return Steps(slices.Clone(names)), nil
}

// Ranks returns the step rank map: rank[steps[i]] = i
func (s Steps) Ranks() map[string]int {
	ranks := make(map[string]int, len(s))
	for i, name := range s {
		ranks[name] = i
	}
	return ranks
}

// Contains reports whether name is a funnel step
func (s Steps) Contains(name string) bool {
	return slices.Contains(s, name)
}

// First returns the entry step, "" for an empty list
func (s Steps) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Last returns the final step, "" for an empty list
func (s Steps) Last() string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// SafeDivide returns num/den, or NaN when den is not positive
func SafeDivide(num, den float64) float64 {
	if den <= 0 || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}

func requireColumns(table *events.Table, fields events.Fields) error {
	fields = fields.WithDefaults()
	return table.RequireColumns(fields.Session, fields.Action, fields.Timestamp)
}
