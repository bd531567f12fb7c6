package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

func TestModelAgent_Defaults(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	a := NewModelAgent("assistant", llm)

	assert.Equal(t, "assistant", a.GetName())
	assert.Same(t, llm, a.GetModel().(*model.MockModel))
	assert.True(t, a.IsStreamingEnabled())
	assert.True(t, a.IsTransferEnabled())
	assert.Empty(t, a.GetOutputKey())
	assert.Empty(t, a.GetTools())
}

func TestModelAgent_ToolRegistry(t *testing.T) {
	a := NewModelAgent("assistant", model.NewMockModel("mock", "mock"))
	echo := tool.NewFunctionTool("echo", "echoes input", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return args, nil })

	a.RegisterTool(echo)
	assert.True(t, a.HasTool("echo"))

	// GetTools returns a copy.
	tools := a.GetTools()
	delete(tools, "echo")
	assert.True(t, a.HasTool("echo"))

	assert.True(t, a.UnregisterTool("echo"))
	assert.False(t, a.UnregisterTool("echo"))
}

func TestModelAgent_RunEmitsFinalResponse(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.Queue("hello there")
	a := NewModelAgent("assistant", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = false
		o.AllowTransfer = false
		o.OutputKey = "reply"
	})

	rc, emit := newAgentRunContextWithEmit(t)
	require.NoError(t, rc.SessionStore.AppendEvent("sess", core.NewUserMessageEvent("run", "hi")))
	require.NoError(t, a.Run(rc))

	select {
	case ev := <-emit:
		assert.Equal(t, "assistant", ev.Author)
		assert.Equal(t, "hello there", ev.Text())
		assert.Equal(t, "hello there", ev.Actions.StateDelta["reply"])
	case <-time.After(time.Second):
		t.Fatalf("no event emitted")
	}
}

func TestModelAgent_SubAgentsAsFlowAgents(t *testing.T) {
	parent := NewModelAgent("parent", model.NewMockModel("mock", "mock"))
	child := NewModelAgent("child", model.NewMockModel("mock", "mock"))
	helper := newFuncAgent("helper", func(*core.RunContext) error { return nil })

	require.NoError(t, parent.SetSubAgents(child, helper))

	flowAgents := parent.GetSubAgents()
	require.Len(t, flowAgents, 1, "only flow-capable children are exposed")
	assert.Equal(t, "child", flowAgents[0].GetName())
}
