package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

func TestComputeTransitions_ForwardFilter(t *testing.T) {
	steps := mustSteps("a", "b", "c")
	table := tableOf(sessionOf("u1", "s1", "b", "a", "c")...)

	out, err := ComputeTransitions(table, steps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.Equal(t, []TransitionRow{{Action: "a", NextAction: "c", Users: 1}}, out.Rows)

	all, err := ComputeTransitions(table, steps.Ranks(), events.DefaultFields(), false)
	require.NoError(t, err)
	assert.Equal(t, []TransitionRow{
		{Action: "a", NextAction: "c", Users: 1},
		{Action: "b", NextAction: "a", Users: 1},
	}, all.Rows)
}

func TestComputeTransitions_OnlyImmediateNeighbours(t *testing.T) {
	steps := mustSteps("search", "product", "cart")
	// The unranked event breaks adjacency between product and cart
	table := tableOf(sessionOf("u1", "s1", "search", "product", "help", "cart")...)

	out, err := ComputeTransitions(table, steps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.Equal(t, []TransitionRow{{Action: "search", NextAction: "product", Users: 1}}, out.Rows)
}

func TestComputeTransitions_LateralMovesKept(t *testing.T) {
	steps := mustSteps("search", "product")
	table := tableOf(sessionOf("u1", "s1", "product", "product")...)

	out, err := ComputeTransitions(table, steps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.Equal(t, []TransitionRow{{Action: "product", NextAction: "product", Users: 1}}, out.Rows)
}

func TestComputeTransitions_DistinctUsersAndSorting(t *testing.T) {
	steps := mustSteps("search", "product", "cart")
	var rows []row
	rows = append(rows, sessionOf("u1", "s1", "search", "product", "cart")...)
	rows = append(rows, sessionOf("u1", "s2", "search", "product")...)
	rows = append(rows, sessionOf("u2", "s3", "product", "cart")...)
	rows = append(rows, sessionOf("u3", "s4", "search", "cart")...)

	out, err := ComputeTransitions(tableOf(rows...), steps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.Equal(t, []TransitionRow{
		{Action: "product", NextAction: "cart", Users: 2},
		{Action: "search", NextAction: "cart", Users: 1},
		{Action: "search", NextAction: "product", Users: 1},
	}, out.Rows)
}

func TestComputeTransitions_PairsDoNotCrossSessions(t *testing.T) {
	steps := mustSteps("a", "b")
	var rows []row
	rows = append(rows, sessionOf("u1", "s1", "a")...)
	rows = append(rows, sessionOf("u1", "s2", "b")...)

	out, err := ComputeTransitions(tableOf(rows...), steps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}

func TestComputeTransitions_EmptyInput(t *testing.T) {
	out, err := ComputeTransitions(tableOf(), shopSteps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.NotNil(t, out.Rows)
	assert.Empty(t, out.Rows)
}

func TestComputeTransitions_MissingColumn(t *testing.T) {
	table := events.NewTable([]string{"userid", "sessionid", "timestamp"}, nil)
	_, err := ComputeTransitions(table, shopSteps.Ranks(), events.DefaultFields(), true)

	var missing *events.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "action", missing.Column)
}

func TestComputeTransitions_BlankUserNotCounted(t *testing.T) {
	steps := mustSteps("search", "product")
	rows := append(sessionOf("", "s1", "search", "product"), sessionOf("u2", "s2", "search", "product")...)

	out, err := ComputeTransitions(tableOf(rows...), steps.Ranks(), events.DefaultFields(), true)
	require.NoError(t, err)
	assert.Equal(t, []TransitionRow{{Action: "search", NextAction: "product", Users: 1}}, out.Rows)
}
