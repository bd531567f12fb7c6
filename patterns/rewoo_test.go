package patterns

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// recordingTool captures the inputs it was called with.
func recordingTool(name string, result string) (tool.Tool, *[]string) {
	var mu sync.Mutex
	var inputs []string

	t := tool.NewFunctionTool(name, "records inputs",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{"type": "string"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			input, _ := args["input"].(string)
			mu.Lock()
			inputs = append(inputs, input)
			mu.Unlock()
			return result, nil
		})

	return t, &inputs
}

func TestREWOO_PlanWorkSolve(t *testing.T) {
	search, inputs := recordingTool("search", "Nimes is in France")

	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"Plan: find the city\n#E1 = search[where is Nimes]\nPlan: find the population\n#E2 = search[population of #E1]",
		"About 150,000 people live there.",
	)

	a := NewREWOO("rewoo", m, func(o *REWOOOptions) {
		o.Tools = []tool.Tool{search}
		o.OutputKey = "answer"
	})

	events, sess := runPattern(t, engine.New(), a, "population of Nimes")

	v, ok := sess.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "About 150,000 people live there.", v)

	// The second step's #E1 reference was substituted with real evidence.
	require.Len(t, *inputs, 2)
	assert.Equal(t, "where is Nimes", (*inputs)[0])
	assert.Equal(t, "population of Nimes is in France", (*inputs)[1])

	assert.Equal(t, []string{"plan"}, stepNames(events))
	assert.Equal(t, 2, m.Calls())
}

func TestREWOO_EmptyPlanIsError(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue("I have no plan.")

	a := NewREWOO("rewoo", m)
	e := engine.New()
	e.Register(a)

	_, _, err := e.RunSync(context.Background(), "sess", "rewoo", core.NewUserText("task"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestSubstituteEvidence(t *testing.T) {
	evidence := map[string]string{"#E1": "Paris", "#E2": "France"}

	assert.Equal(t, "capital of France is Paris",
		substituteEvidence("capital of #E2 is #E1", evidence))
	assert.Equal(t, "keeps #E9 intact",
		substituteEvidence("keeps #E9 intact", evidence))
}

func TestParseREWOOPlan(t *testing.T) {
	steps := parseREWOOPlan("Plan: step a\n#E1 = search[query one]\nnoise\nPlan: step b\n#E2 = calc[1 + 2]")
	require.Len(t, steps, 2)
	assert.Equal(t, rewooStep{Evidence: "#E1", Tool: "search", Input: "query one", Plan: "step a"}, steps[0])
	assert.Equal(t, rewooStep{Evidence: "#E2", Tool: "calc", Input: "1 + 2", Plan: "step b"}, steps[1])
}
