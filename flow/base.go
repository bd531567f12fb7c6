package flow

import (
	"fmt"
	"maps"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// BaseFlow drives a request -> model -> (optional tool loop) cycle with
// pluggable request and response processors. Tool calls within one model
// turn execute through the FunctionExecutor and are merged into a single
// function response event so state deltas and transfers land atomically.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow without processors. Callers register processors
// in execution order.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; registration order
// defines execution order.
func (f *BaseFlow) AddRequestProcessor(p RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, p)
}

// AddResponseProcessor appends a response processor executed after each
// model chunk.
func (f *BaseFlow) AddResponseProcessor(p ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, p)
}

// SetFunctionExecutor replaces the default tool executor.
func (f *BaseFlow) SetFunctionExecutor(e FunctionExecutor) {
	if e != nil {
		f.executor = e
	}
}

// Execute launches the flow asynchronously. The event channel carries model
// and tool events; both channels close when a final response is emitted or
// an unrecoverable error occurs.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error, error) {
	eventChan := make(chan core.Event, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		defer close(errChan)

		for {
			last, err := f.runOnce(runCtx, eventChan)
			if err != nil {
				errChan <- err
				return
			}
			if last == nil {
				return
			}
			// A function response means the model gets another turn to
			// incorporate the tool results.
			if len(last.GetFunctionResponses()) > 0 {
				if last.Actions.TransferToAgent != nil || (last.Actions.Escalate != nil && *last.Actions.Escalate) {
					return
				}
				continue
			}
			return
		}
	}()

	return eventChan, errChan, nil
}

// runOnce performs one model turn including tool execution and returns the
// last emitted event. A nil event signals termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) (*core.Event, error) {
	if runCtx.Limiter != nil && !runCtx.Limiter.Increment() {
		return nil, fmt.Errorf("model call budget exceeded for run %s", runCtx.RunID)
	}

	// Refresh the session snapshot so processors see the latest
	// conversation, including tool responses from the previous turn.
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s: %w", processor.Name(), err)
		}
	}

	registry := f.toolRegistry()
	for _, t := range registry {
		if f.hasToolDefinition(req, t.Name()) {
			continue
		}
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	respCh, errCh := f.agent.GetModel().Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for {
		select {
		case <-runCtx.Done():
			return lastEvent, runCtx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return nil, fmt.Errorf("model generation: %w", err)
			}
			errCh = nil
			if respCh == nil {
				return lastEvent, nil
			}
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				if errCh == nil {
					return lastEvent, nil
				}
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return nil, fmt.Errorf("response processor %s: %w", processor.Name(), err)
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial

			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
				if key := f.agent.GetOutputKey(); key != "" {
					if ev.Actions.StateDelta == nil {
						ev.Actions.StateDelta = map[string]any{}
					}
					ev.Actions.StateDelta[key] = ev.Text()
				}
			}

			lastEvent = &ev
			eventChan <- ev

			if !ev.IsPartial() {
				if err := runCtx.WaitForResume(); err != nil {
					return lastEvent, nil
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				merged, err := f.executeFunctions(runCtx, registry, fnCalls)
				if err != nil {
					return nil, err
				}

				lastEvent = merged
				eventChan <- *merged

				if err := runCtx.WaitForResume(); err != nil {
					return lastEvent, nil
				}
				return lastEvent, nil
			}
		}
	}
}

// toolRegistry returns the agent's tools, adding the transfer tool when the
// agent may hand off to sub-agents.
func (f *BaseFlow) toolRegistry() map[string]tool.Tool {
	tools := f.agent.GetTools()
	if !f.agent.IsTransferEnabled() || len(f.agent.GetSubAgents()) == 0 {
		return tools
	}

	registry := make(map[string]tool.Tool, len(tools)+1)
	maps.Copy(registry, tools)
	transfer := tool.NewTransferToAgentTool()
	if _, ok := registry[transfer.Name()]; !ok {
		registry[transfer.Name()] = transfer
	}
	return registry
}

func (f *BaseFlow) hasToolDefinition(req *model.Request, name string) bool {
	for _, td := range req.Tools {
		if td.Function.Name == name {
			return true
		}
	}
	return false
}

// executeFunctions runs all calls of one model turn and merges the resulting
// function response events into a single event.
func (f *BaseFlow) executeFunctions(runCtx *core.RunContext, registry map[string]tool.Tool, fnCalls []core.FunctionCall) (*core.Event, error) {
	var collected []core.Event
	f.executor.Execute(runCtx, f.agent, registry, fnCalls, func(ev core.Event) error {
		collected = append(collected, ev)
		return nil
	})
	if len(collected) == 0 {
		return nil, fmt.Errorf("no function responses produced for %d calls", len(fnCalls))
	}

	merged := mergeFunctionEvents(runCtx.RunID, f.agent.GetName(), collected)
	return &merged, nil
}

// mergeFunctionEvents combines per-call response events into one event with
// all response parts and the union of their actions. Later transfers and
// escalations win.
func mergeFunctionEvents(runID, author string, events []core.Event) core.Event {
	merged := core.NewEvent(runID, author)
	content := &core.Content{Role: "tool"}

	for _, ev := range events {
		if ev.Content != nil {
			content.Parts = append(content.Parts, ev.Content.Parts...)
		}
		if len(ev.Actions.StateDelta) > 0 {
			if merged.Actions.StateDelta == nil {
				merged.Actions.StateDelta = map[string]any{}
			}
			maps.Copy(merged.Actions.StateDelta, ev.Actions.StateDelta)
		}
		if len(ev.Actions.ArtifactDelta) > 0 {
			if merged.Actions.ArtifactDelta == nil {
				merged.Actions.ArtifactDelta = map[string]int{}
			}
			maps.Copy(merged.Actions.ArtifactDelta, ev.Actions.ArtifactDelta)
		}
		if ev.Actions.TransferToAgent != nil {
			merged.Actions.TransferToAgent = ev.Actions.TransferToAgent
		}
		if ev.Actions.Escalate != nil {
			merged.Actions.Escalate = ev.Actions.Escalate
		}
	}

	merged.Content = content
	return merged
}
