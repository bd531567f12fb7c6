package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
)

func TestSequentialAgent_RunsInOrder(t *testing.T) {
	var order []string
	first := newFuncAgent("first", func(*core.RunContext) error {
		order = append(order, "first")
		return nil
	})
	second := newFuncAgent("second", func(*core.RunContext) error {
		order = append(order, "second")
		return nil
	})

	seq := NewSequentialAgent("pipeline", first, second)
	rc := newAgentRunContext(t)

	require.NoError(t, seq.Run(rc))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSequentialAgent_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	first := newFuncAgent("first", func(*core.RunContext) error { return boom })
	second := newFuncAgent("second", func(*core.RunContext) error {
		ran = true
		return nil
	})

	seq := NewSequentialAgent("pipeline", first, second)
	rc := newAgentRunContext(t)

	err := seq.Run(rc)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "first")
	assert.False(t, ran, "later agents must not run after a failure")
}

func TestSequentialAgent_SharesRunContext(t *testing.T) {
	rc := newAgentRunContext(t)
	writer := newFuncAgent("writer", func(c *core.RunContext) error {
		c.SetState("step", "one")
		return nil
	})
	var got any
	reader := newFuncAgent("reader", func(c *core.RunContext) error {
		got, _ = c.GetState("step")
		return nil
	})

	seq := NewSequentialAgent("pipeline", writer, reader)
	require.NoError(t, seq.Run(rc))
	assert.Equal(t, "one", got)
}

func TestSequentialAgent_MockChildren(t *testing.T) {
	rc := newAgentRunContext(t)
	child := NewMockAgent("child")
	child.On("Run", rc).Return(nil)

	seq := NewSequentialAgent("pipeline", child)
	require.NoError(t, seq.Run(rc))
	child.AssertExpectations(t)
}
