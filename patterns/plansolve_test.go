package patterns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/model"
)

func TestPlanSolve_ExecutesStepsInOrder(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"1. look up the population\n2. double it",
		"population is 10",
		"doubled it is 20",
		"The answer is 20.",
	)

	a := NewPlanSolve("planner", m, func(o *PlanSolveOptions) { o.OutputKey = "answer" })
	events, sess := runPattern(t, engine.New(), a, "double the population")

	v, ok := sess.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "The answer is 20.", v)

	assert.Equal(t, []string{"plan", "step_result", "step_result"}, stepNames(events))
	assert.Equal(t, 4, m.Calls())
}

func TestPlanSolve_NoStepsIsError(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue("I cannot make a plan for this.")

	a := NewPlanSolve("planner", m)
	e := engine.New()
	e.Register(a)

	_, _, err := e.RunSync(context.Background(), "sess", "planner", core.NewUserText("task"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}
