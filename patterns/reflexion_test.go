package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/memory"
	"github.com/osok/agent-patterns/model"
)

func TestReflexion_RetriesWithReflection(t *testing.T) {
	store := memory.NewInMemoryStore()
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"wrong answer",
		"FAILURE: the calculation is off by one",
		"I miscounted the boundary, next time include the endpoint.",
		"right answer including the endpoint",
		"SUCCESS",
	)

	a := NewReflexion("reflexion", m, func(o *ReflexionOptions) { o.OutputKey = "solution" })
	e := engine.New(engine.WithMemoryStore(store))
	events, sess := runPattern(t, e, a, "count the fence posts")

	v, ok := sess.GetState("solution")
	require.True(t, ok)
	assert.Equal(t, "right answer including the endpoint", v)

	assert.Equal(t, []string{"trial", "trial"}, stepNames(events))

	// The verbal reflection landed in episodic memory.
	results, err := store.Search("sess", "boundary endpoint", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, memory.Episodic, memory.TypeOf(results[0].Metadata))
}

func TestReflexion_TrialBudgetReturnsLastAttempt(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"attempt one",
		"FAILURE: wrong",
		"reflection one",
		"attempt two",
		"FAILURE: still wrong",
	)

	a := NewReflexion("reflexion", m, func(o *ReflexionOptions) { o.MaxTrials = 2 })
	_, sess := runPattern(t, engine.New(), a, "impossible task")

	v, ok := sess.GetState(DefaultOutputKey)
	require.True(t, ok)
	assert.Equal(t, "attempt two", v)
	assert.Equal(t, 5, m.Calls())
}
