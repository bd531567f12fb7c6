// Package flow provides the execution pipeline that drives a model-backed
// agent: request assembly through pluggable processors, model streaming,
// tool execution and event emission.
package flow

import (
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// Flow orchestrates one agent turn cycle. Execute returns an event channel,
// an error channel and a startup error. Both channels are closed when the
// flow terminates.
type Flow interface {
	Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error, error)
}

// FlowAgent is the view of an agent that flows operate on. It exposes the
// agent's configuration without exposing its implementation.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetModel returns the language model driving the agent.
	GetModel() model.Model

	// ResolveInstructions returns the system instructions for this turn.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the tools available for function calling.
	GetTools() map[string]tool.Tool

	// GetSubAgents returns the agent's children, if any.
	GetSubAgents() []FlowAgent

	// IsStreamingEnabled returns whether partial responses are requested.
	IsStreamingEnabled() bool

	// IsTransferEnabled returns whether control may transfer to sub-agents.
	IsTransferEnabled() bool

	// GetOutputKey returns the session state key for the final response, or
	// empty when the response should not be written to state.
	GetOutputKey() string

	// HistoryTokenBudget returns the token budget for conversation history.
	// Zero selects the default budget.
	HistoryTokenBudget() int
}

// RequestProcessor mutates the model request before generation.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor inspects or mutates each model response chunk.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
