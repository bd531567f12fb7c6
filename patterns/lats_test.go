package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/model"
)

func TestLATS_StopsOnSolution(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	// One rollout: two sampled candidates, then one evaluation per candidate.
	m.Queue(
		"SOLUTION: 42",
		"try splitting the problem first",
		"Score: 9 because the solution is complete and correct",
		"Score: 3 more work needed",
	)

	a := NewLATS("lats", m, func(o *LATSOptions) {
		o.OutputKey = "answer"
		o.NumCandidates = 2
		o.SolutionThreshold = 0.8
	})

	events, sess := runPattern(t, engine.New(), a, "what is six times seven")

	v, ok := sess.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "42", v)

	assert.Equal(t, []string{"rollout"}, stepNames(events))
	// Two sampled candidates plus two evaluation calls.
	assert.Equal(t, 4, m.Calls())
}

func TestLATS_RolloutBudgetReturnsBestTrajectory(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		// rollout 1: one candidate, mediocre score
		"consider the base case",
		"Score: 4",
		// rollout 2: expansion of the deeper node, still no solution
		"generalize to n",
		"Score: 6",
	)

	a := NewLATS("lats", m, func(o *LATSOptions) {
		o.MaxRollouts = 2
		o.NumCandidates = 1
	})

	_, sess := runPattern(t, engine.New(), a, "prove the sum formula")

	v, ok := sess.GetState(DefaultOutputKey)
	require.True(t, ok)
	// Best trajectory is the two-step path.
	assert.Equal(t, "consider the base case\ngeneralize to n", v)
	assert.Equal(t, 4, m.Calls())
}

func TestParseScore(t *testing.T) {
	assert.InDelta(t, 0.9, parseScore("Score: 9 solid work"), 1e-9)
	assert.InDelta(t, 0.75, parseScore("score: 7.5"), 1e-9)
	assert.InDelta(t, 1.0, parseScore("Score: 15 overflows"), 1e-9)
	assert.Zero(t, parseScore("no score here"))
}

func TestLATSNodeUCT(t *testing.T) {
	root := &latsNode{visits: 10}
	fresh := &latsNode{parent: root}
	visited := &latsNode{parent: root, visits: 5, valueSum: 3}

	// Unvisited nodes are always selected first.
	assert.Greater(t, fresh.uct(1.4), visited.uct(1.4))
	assert.Greater(t, visited.uct(1.4), 0.0)
}
