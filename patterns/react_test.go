package patterns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

func TestReAct_ToolCallThenFinalAnswer(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"Thought: I should echo the greeting.\nAction: echo\nAction Input: {\"input\": \"hello\"}",
		"Thought: I have what I need.\nFinal Answer: hello world",
	)

	a := NewReAct("react", m, func(o *ReActOptions) {
		o.Tools = []tool.Tool{echoTool()}
		o.OutputKey = "answer"
	})

	events, sess := runPattern(t, engine.New(), a, "say hello")

	v, ok := sess.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "hello world", v)

	// One function call and one function response precede the final answer.
	var calls, responses int
	for _, ev := range events {
		calls += len(ev.GetFunctionCalls())
		responses += len(ev.GetFunctionResponses())
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, responses)
	assert.Equal(t, "hello world", events[len(events)-1].Text())
	assert.Equal(t, 2, m.Calls())
}

func TestReAct_UnparseableTurnBecomesAnswer(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue("The answer is 42.")

	a := NewReAct("react", m)
	_, sess := runPattern(t, engine.New(), a, "what is the answer")

	v, ok := sess.GetState(DefaultOutputKey)
	require.True(t, ok)
	assert.Equal(t, "The answer is 42.", v)
}

func TestReAct_MissingToolBecomesErrorObservation(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"Thought: try the tool.\nAction: missing\nAction Input: {}",
		"Thought: tool is unavailable.\nFinal Answer: no tool",
	)

	a := NewReAct("react", m)
	events, sess := runPattern(t, engine.New(), a, "task")

	v, _ := sess.GetState(DefaultOutputKey)
	assert.Equal(t, "no tool", v)

	var sawError bool
	for _, ev := range events {
		for _, fr := range ev.GetFunctionResponses() {
			if fr.Error != "" {
				sawError = true
			}
		}
	}
	assert.True(t, sawError, "missing tool should produce an error response")
}

func TestReAct_IterationBudget(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.Queue(
		"Thought: loop.\nAction: echo\nAction Input: {\"input\": \"a\"}",
		"Thought: loop.\nAction: echo\nAction Input: {\"input\": \"b\"}",
	)

	a := NewReAct("react", m, func(o *ReActOptions) {
		o.Tools = []tool.Tool{echoTool()}
		o.MaxIterations = 2
	})

	e := engine.New()
	e.Register(a)

	_, _, err := e.RunSync(context.Background(), "sess", "react", core.NewUserText("never ends"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no final answer")
}
