package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_LinearRun(t *testing.T) {
	g := New("linear")
	require.NoError(t, g.AddNode("a", func(ctx context.Context, s State) (State, error) {
		s["a"] = true
		return s, nil
	}))
	require.NoError(t, g.AddNode("b", func(ctx context.Context, s State) (State, error) {
		s["b"] = true
		return s, nil
	}))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", End))
	require.NoError(t, g.SetEntryPoint("a"))

	out, err := g.Run(context.Background(), State{"input": "x"})
	require.NoError(t, err)
	assert.True(t, out.GetBool("a"))
	assert.True(t, out.GetBool("b"))
	assert.Equal(t, "x", out.GetString("input"))
}

func TestGraph_ConditionalLoop(t *testing.T) {
	g := New("loop")
	require.NoError(t, g.AddNode("count", func(ctx context.Context, s State) (State, error) {
		s["n"] = s.GetInt("n") + 1
		return s, nil
	}))
	require.NoError(t, g.AddConditionalEdge("count", func(s State) string {
		if s.GetInt("n") >= 3 {
			return End
		}
		return "count"
	}))
	require.NoError(t, g.SetEntryPoint("count"))

	out, err := g.Run(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.GetInt("n"))
}

func TestGraph_StepBudget(t *testing.T) {
	g := New("forever", WithMaxSteps(5))
	require.NoError(t, g.AddNode("spin", func(ctx context.Context, s State) (State, error) {
		s["n"] = s.GetInt("n") + 1
		return s, nil
	}))
	require.NoError(t, g.AddEdge("spin", "spin"))
	require.NoError(t, g.SetEntryPoint("spin"))

	out, err := g.Run(context.Background(), State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step budget")
	assert.Equal(t, 5, out.GetInt("n"))
}

func TestGraph_NodeError(t *testing.T) {
	boom := errors.New("boom")
	g := New("failing")
	require.NoError(t, g.AddNode("bad", func(ctx context.Context, s State) (State, error) {
		return nil, boom
	}))
	require.NoError(t, g.SetEntryPoint("bad"))

	_, err := g.Run(context.Background(), State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestGraph_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := New("cancelled")
	require.NoError(t, g.AddNode("first", func(ctx context.Context, s State) (State, error) {
		cancel()
		return s, nil
	}))
	require.NoError(t, g.AddNode("second", func(ctx context.Context, s State) (State, error) {
		t.Fatal("second node should not run after cancellation")
		return s, nil
	}))
	require.NoError(t, g.AddEdge("first", "second"))
	require.NoError(t, g.SetEntryPoint("first"))

	_, err := g.Run(ctx, State{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGraph_TraceObservesSteps(t *testing.T) {
	var visited []string
	g := New("traced", WithTrace(func(step int, node string, s State) {
		visited = append(visited, node)
	}))
	require.NoError(t, g.AddNode("a", func(ctx context.Context, s State) (State, error) { return s, nil }))
	require.NoError(t, g.AddNode("b", func(ctx context.Context, s State) (State, error) { return s, nil }))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", End))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err := g.Run(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, visited)
}

func TestGraph_TraceSnapshotIsolation(t *testing.T) {
	var snapshots []State
	g := New("snap", WithTrace(func(step int, node string, s State) {
		snapshots = append(snapshots, s)
	}))
	require.NoError(t, g.AddNode("a", func(ctx context.Context, s State) (State, error) {
		s["v"] = 1
		return s, nil
	}))
	require.NoError(t, g.AddNode("b", func(ctx context.Context, s State) (State, error) {
		s["v"] = 2
		return s, nil
	}))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", End))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err := g.Run(context.Background(), State{})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 1, snapshots[0].GetInt("v"))
	assert.Equal(t, 2, snapshots[1].GetInt("v"))
}

func TestGraph_MissingEdgeIsError(t *testing.T) {
	g := New("stranded")
	require.NoError(t, g.AddNode("only", func(ctx context.Context, s State) (State, error) {
		s["ran"] = true
		return s, nil
	}))
	require.NoError(t, g.SetEntryPoint("only"))

	out, err := g.Run(context.Background(), State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node only has no outgoing edge")
	assert.True(t, out.GetBool("ran"))
}

func TestGraph_ValidateErrors(t *testing.T) {
	g := New("invalid")
	require.NoError(t, g.AddNode("a", func(ctx context.Context, s State) (State, error) { return s, nil }))
	require.NoError(t, g.AddEdge("a", "missing"))

	_, err := g.Run(context.Background(), State{})
	require.Error(t, err)

	require.NoError(t, g.SetEntryPoint("a"))
	_, err = g.Run(context.Background(), State{})
	assert.Contains(t, err.Error(), "unknown node")
}

func TestState_TypedAccessors(t *testing.T) {
	s := State{
		"str":   "hello",
		"int":   3,
		"float": float64(7),
		"bool":  true,
		"list":  []any{"a", "b"},
	}
	assert.Equal(t, "hello", s.GetString("str"))
	assert.Equal(t, 3, s.GetInt("int"))
	assert.Equal(t, 7, s.GetInt("float"))
	assert.True(t, s.GetBool("bool"))
	assert.Equal(t, []string{"a", "b"}, s.GetStringSlice("list"))
	assert.Equal(t, "", s.GetString("missing"))
	assert.Nil(t, s.GetSlice("missing"))

	clone := s.Clone()
	clone["str"] = "changed"
	assert.Equal(t, "hello", s.GetString("str"))
}
