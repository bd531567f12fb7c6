package flow

import (
	"testing"
	"time"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/tool"
)

type panicTool struct{}

func (t *panicTool) Name() string               { return "boom" }
func (t *panicTool) Description() string        { return "panics" }
func (t *panicTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *panicTool) Call(*core.ToolContext, map[string]any) (any, error) {
	panic("exploded")
}

func TestParallelFunctionExecutor_PreservesOrder(t *testing.T) {
	registry := map[string]tool.Tool{
		"slow": &delayTool{name: "slow", delay: 30 * time.Millisecond, result: "slow-result"},
		"fast": &delayTool{name: "fast", result: "fast-result"},
	}
	fnCalls := []core.FunctionCall{
		{ID: "1", Name: "slow", Arguments: "{}"},
		{ID: "2", Name: "fast", Arguments: "{}"},
	}

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true})
	rc := newFlowRunContext(t)
	agent := &mockAgent{name: "A"}

	var events []core.Event
	exec.Execute(rc, agent, registry, fnCalls, func(ev core.Event) error {
		events = append(events, ev)
		return nil
	})

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].GetFunctionResponses()[0].Name != "slow" {
		t.Fatalf("order not preserved")
	}
	if events[1].GetFunctionResponses()[0].Name != "fast" {
		t.Fatalf("order not preserved")
	}
}

func TestParallelFunctionExecutor_RecoversPanic(t *testing.T) {
	registry := map[string]tool.Tool{"boom": &panicTool{}}
	fnCalls := []core.FunctionCall{{ID: "1", Name: "boom", Arguments: "{}"}}

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newFlowRunContext(t)

	var events []core.Event
	exec.Execute(rc, &mockAgent{name: "A"}, registry, fnCalls, func(ev core.Event) error {
		events = append(events, ev)
		return nil
	})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	fr := events[0].GetFunctionResponses()[0]
	if fr.Error == "" {
		t.Fatalf("expected panic converted to error response")
	}
}

func TestParallelFunctionExecutor_UnknownTool(t *testing.T) {
	fnCalls := []core.FunctionCall{{ID: "1", Name: "ghost", Arguments: "{}"}}

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newFlowRunContext(t)

	var events []core.Event
	exec.Execute(rc, &mockAgent{name: "A"}, map[string]tool.Tool{}, fnCalls, func(ev core.Event) error {
		events = append(events, ev)
		return nil
	})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	fr := events[0].GetFunctionResponses()[0]
	if fr.Error == "" {
		t.Fatalf("expected not-found error response")
	}
}
