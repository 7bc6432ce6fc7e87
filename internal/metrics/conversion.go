package metrics

import (
	"sort"
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// ConversionRow is one cohort date of the daily conversion table
type ConversionRow struct {
	CohortDate string
	// Counts holds distinct users per step, in step order
	Counts []int
	// Ratios holds count(steps[i+1]) / count(steps[i]); NaN on a zero denominator
	Ratios []float64
	Full   float64
}

// ConversionTable is the cohort-anchored daily conversion result
type ConversionTable struct {
	Steps Steps
	Rows  []ConversionRow
}

// Columns returns the header: cohort_date, one column per step, the adjacent
// ratios and cr_full.
func (t ConversionTable) Columns() []string {
	return ConversionColumns(t.Steps)
}

// ConversionColumns builds the daily conversion header for a step list
func ConversionColumns(steps Steps) []string {
	cols := make([]string, 0, 2*len(steps)+1)
	cols = append(cols, "cohort_date")
	cols = append(cols, steps...)
	cols = append(cols, RatioColumns(steps)...)
	return append(cols, "cr_full")
}

// RatioColumns names the adjacent-step ratio columns
func RatioColumns(steps Steps) []string {
	if len(steps) < 2 {
		return nil
	}
	cols := make([]string, 0, len(steps)-1)
	for i := 0; i+1 < len(steps); i++ {
		cols = append(cols, "cr_"+steps[i]+"_to_"+steps[i+1])
	}
	return cols
}

type cohort struct {
	firstTS time.Time
	date    string
}

// ComputeConversionDaily anchors every user at their first occurrence of the
// entry step and counts, per cohort date and step, the distinct users who
// performed that step at or after their anchor. Users who never perform the
// entry step have no cohort and are ignored, as are events without a user id.
func ComputeConversionDaily(table *events.Table, steps Steps, fields events.Fields) (ConversionTable, error) {
	if err := requireColumns(table, fields); err != nil {
		return ConversionTable{}, err
	}
	result := ConversionTable{Steps: steps, Rows: []ConversionRow{}}
	if len(steps) == 0 {
		return result, nil
	}

	funnelEvents := table.Filter(func(e events.Event) bool {
		return e.HasTimestamp() && e.HasUser() && steps.Contains(e.Action)
	}).Events

	cohorts := make(map[string]cohort)
	entry := steps.First()
	for _, e := range funnelEvents {
		if e.Action != entry {
			continue
		}
		c, ok := cohorts[e.UserID]
		if !ok || e.Timestamp.Before(c.firstTS) {
			cohorts[e.UserID] = cohort{firstTS: e.Timestamp, date: e.Date()}
		}
	}

	ranks := steps.Ranks()
	users := make(map[string][]map[string]struct{})
	for _, e := range funnelEvents {
		c, ok := cohorts[e.UserID]
		if !ok || e.Timestamp.Before(c.firstTS) {
			continue
		}
		perStep, ok := users[c.date]
		if !ok {
			perStep = make([]map[string]struct{}, len(steps))
			for i := range perStep {
				perStep[i] = make(map[string]struct{})
			}
			users[c.date] = perStep
		}
		perStep[ranks[e.Action]][e.UserID] = struct{}{}
	}

	dates := make([]string, 0, len(users))
	for date := range users {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		row := ConversionRow{
			CohortDate: date,
			Counts:     make([]int, len(steps)),
		}
		for i, set := range users[date] {
			row.Counts[i] = len(set)
		}
		row.Ratios, row.Full = conversionRatios(row.Counts)
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func conversionRatios(counts []int) ([]float64, float64) {
	var ratios []float64
	for i := 0; i+1 < len(counts); i++ {
		ratios = append(ratios, SafeDivide(float64(counts[i+1]), float64(counts[i])))
	}
	full := SafeDivide(float64(counts[len(counts)-1]), float64(counts[0]))
	return ratios, full
}
