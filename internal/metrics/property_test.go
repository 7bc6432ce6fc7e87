package metrics

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

var propSteps = mustSteps("a", "b", "c", "d")

func genActions() gopter.Gen {
	return gen.SliceOf(gen.OneConstOf("a", "b", "c", "d", "x"))
}

// tableFromSessions lays each action list out as one session of user u<i%3>
func tableFromSessions(sessions [][]string) *events.Table {
	var rows []row
	for i, actions := range sessions {
		rows = append(rows, sessionOf(fmt.Sprintf("u%d", i%3), fmt.Sprintf("s%02d", i), actions...)...)
	}
	return tableOf(rows...)
}

func TestProperty_FunnelMatching(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reached steps are a prefix of the step list", prop.ForAll(
		func(actions []string) bool {
			reached := MatchSession(actions, propSteps)
			return reflect.DeepEqual(reached, []string(propSteps[:len(reached)]))
		},
		genActions(),
	))

	properties.Property("growing the step list never unreaches a step", prop.ForAll(
		func(actions []string) bool {
			prev := MatchSession(actions, propSteps[:1])
			for k := 2; k <= len(propSteps); k++ {
				cur := MatchSession(actions, propSteps[:k])
				if len(cur) < len(prev) || !reflect.DeepEqual(cur[:len(prev)], prev) {
					return false
				}
				prev = cur
			}
			return true
		},
		genActions(),
	))

	properties.Property("reached steps occur in order in the session", prop.ForAll(
		func(actions []string) bool {
			pos := 0
			for _, step := range MatchSession(actions, propSteps) {
				i := indexFrom(actions, step, pos)
				if i < 0 {
					return false
				}
				pos = i + 1
			}
			return true
		},
		genActions(),
	))

	properties.TestingRun(t)
}

func TestProperty_TransitionsForwardOnly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	ranks := propSteps.Ranks()

	properties.Property("kept transitions never move backwards", prop.ForAll(
		func(sessions [][]string) bool {
			out, err := ComputeTransitions(tableFromSessions(sessions), ranks, events.DefaultFields(), true)
			if err != nil {
				return false
			}
			for _, r := range out.Rows {
				if ranks[r.NextAction] < ranks[r.Action] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genActions()),
	))

	properties.TestingRun(t)
}

func TestProperty_Idempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	fields := events.DefaultFields()

	properties.Property("recomputing on the same table yields identical output", prop.ForAll(
		func(sessions [][]string) bool {
			table := tableFromSessions(sessions)

			f1, err1 := ComputeFunnel(table, propSteps, fields)
			f2, err2 := ComputeFunnel(table, propSteps, fields)
			t1, err3 := ComputeTransitions(table, propSteps.Ranks(), fields, true)
			t2, err4 := ComputeTransitions(table, propSteps.Ranks(), fields, true)
			c1, err5 := ComputeConversionDaily(table, propSteps, fields)
			c2, err6 := ComputeConversionDaily(table, propSteps, fields)
			for _, err := range []error{err1, err2, err3, err4, err5, err6} {
				if err != nil {
					return false
				}
			}
			// Conversion ratios may hold NaN, so compare the rendered form
			return reflect.DeepEqual(f1, f2) &&
				reflect.DeepEqual(t1, t2) &&
				fmt.Sprint(c1) == fmt.Sprint(c2)
		},
		gen.SliceOf(genActions()),
	))

	properties.TestingRun(t)
}
