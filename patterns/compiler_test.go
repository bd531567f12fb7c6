package patterns

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// queryTool records the query argument of every call.
func queryTool(name, result string) (tool.Tool, *[]string) {
	var mu sync.Mutex
	var queries []string

	t := tool.NewFunctionTool(name, "answers queries",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			q, _ := args["query"].(string)
			mu.Lock()
			queries = append(queries, q)
			mu.Unlock()
			return result, nil
		})

	return t, &queries
}

func TestCompiler_SchedulesDAGAndJoins(t *testing.T) {
	search, searchQueries := queryTool("search", "42 degrees")
	calc, calcQueries := queryTool("calc", "84")

	m := model.NewMockModel("mock", "mock")
	m.Queue(
		`[
  {"id": 1, "tool": "search", "args": {"query": "temperature in Lyon"}, "depends_on": []},
  {"id": 2, "tool": "search", "args": {"query": "temperature in Nice"}, "depends_on": []},
  {"id": 3, "tool": "calc", "args": {"query": "sum of ${1} and ${2}"}, "depends_on": [1, 2]}
]`,
		"FINISH: the sum is 84",
	)

	a := NewCompiler("compiler", m, func(o *CompilerOptions) {
		o.Tools = []tool.Tool{search, calc}
		o.OutputKey = "answer"
	})

	events, sess := runPattern(t, engine.New(), a, "sum the temperatures")

	v, ok := sess.GetState("answer")
	require.True(t, ok)
	assert.Equal(t, "the sum is 84", v)

	assert.Len(t, *searchQueries, 2)
	require.Len(t, *calcQueries, 1)
	assert.Equal(t, "sum of 42 degrees and 42 degrees", (*calcQueries)[0])

	names := stepNames(events)
	assert.Equal(t, "plan", names[0])
	assert.Equal(t, 4, len(names), "plan plus three task completions")
	assert.Equal(t, 2, m.Calls())
}

func TestCompiler_ReplanOnce(t *testing.T) {
	search, _ := queryTool("search", "partial data")

	m := model.NewMockModel("mock", "mock")
	m.Queue(
		`[{"id": 1, "tool": "search", "args": {"query": "first pass"}, "depends_on": []}]`,
		"REPLAN: need a second source",
		`[{"id": 1, "tool": "search", "args": {"query": "second pass"}, "depends_on": []}]`,
		"FINISH: combined answer",
	)

	a := NewCompiler("compiler", m, func(o *CompilerOptions) {
		o.Tools = []tool.Tool{search}
		o.MaxReplans = 1
	})

	_, sess := runPattern(t, engine.New(), a, "research")

	v, ok := sess.GetState(DefaultOutputKey)
	require.True(t, ok)
	assert.Equal(t, "combined answer", v)
	assert.Equal(t, 4, m.Calls())
}

func TestCompiler_FailedDependencyFailsDependents(t *testing.T) {
	failing := tool.NewFunctionTool("search", "always fails",
		map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, assert.AnError
		})

	m := model.NewMockModel("mock", "mock")
	m.Queue(`[
  {"id": 1, "tool": "search", "args": {"query": "x"}, "depends_on": []},
  {"id": 2, "tool": "search", "args": {"query": "${1}"}, "depends_on": [1]}
]`)

	a := NewCompiler("compiler", m, func(o *CompilerOptions) {
		o.Tools = []tool.Tool{failing}
	})

	e := engine.New()
	e.Register(a)

	_, _, err := e.RunSync(context.Background(), "sess", "compiler", core.NewUserText("task"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task 1")
}

func TestValidateDAG(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []compilerTask
		wantErr string
	}{
		{
			"valid chain",
			[]compilerTask{{ID: 1}, {ID: 2, DependsOn: []int{1}}},
			"",
		},
		{
			"unknown dependency",
			[]compilerTask{{ID: 1, DependsOn: []int{9}}},
			"unknown task 9",
		},
		{
			"self dependency",
			[]compilerTask{{ID: 1, DependsOn: []int{1}}},
			"depends on itself",
		},
		{
			"cycle",
			[]compilerTask{{ID: 1, DependsOn: []int{2}}, {ID: 2, DependsOn: []int{1}}},
			"cycle",
		},
		{
			"duplicate id",
			[]compilerTask{{ID: 1}, {ID: 1}},
			"duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDAG(tt.tasks)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseCompilerPlan_StripsCodeFence(t *testing.T) {
	tasks, err := parseCompilerPlan("```json\n[{\"id\": 1, \"tool\": \"search\", \"args\": {}, \"depends_on\": []}]\n```")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "search", tasks[0].Tool)
}

func TestResolveRefs(t *testing.T) {
	args := resolveRefs(
		map[string]any{"query": "use ${1} and ${2}", "limit": 3},
		map[int]string{1: "alpha", 2: "beta"},
	)
	assert.Equal(t, "use alpha and beta", args["query"])
	assert.Equal(t, 3, args["limit"])

	args = resolveRefs(map[string]any{"query": "${9}"}, map[int]string{})
	assert.True(t, strings.Contains(args["query"].(string), "${9}"))
}
