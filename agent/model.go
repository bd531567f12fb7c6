package agent

import (
	"fmt"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/flow"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// ModelAgentOptions configures a ModelAgent instance. Use functional options
// with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction        Instruction
	EnableStreaming    bool
	AllowTransfer      bool
	OutputKey          string
	HistoryTokenBudget int
	Tools              map[string]tool.Tool
}

// ModelAgent integrates a language model with tools and flows. It supports
// conversation through resolved instructions, function calling, streaming
// responses, output-key state writes and transfer to sub-agents.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	allowTransfer      bool
	outputKey          string
	historyTokenBudget int
}

// NewModelAgent creates a model-backed agent. Defaults: streaming enabled,
// transfer enabled, empty tool registry, default history token budget.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:     NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming: true,
		AllowTransfer:   true,
		Tools:           make(map[string]tool.Tool),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              opts.Tools,
		enableStreaming:    opts.EnableStreaming,
		allowTransfer:      opts.AllowTransfer,
		outputKey:          opts.OutputKey,
		historyTokenBudget: opts.HistoryTokenBudget,
	}
}

// RegisterTool adds a tool to the agent's capability set.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools at once.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool. Returns true if it was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool reports whether a tool is registered.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetModel returns the language model instance.
func (a *ModelAgent) GetModel() model.Model { return a.llm }

// GetTools returns a copy of the registered tools.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// GetSubAgents returns the child agents that can participate in flows.
func (a *ModelAgent) GetSubAgents() []flow.FlowAgent {
	subAgents := a.SubAgents()
	flowAgents := make([]flow.FlowAgent, 0, len(subAgents))
	for _, subAgent := range subAgents {
		if flowAgent, ok := subAgent.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, flowAgent)
		}
	}
	return flowAgents
}

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled returns whether agent transfer is enabled.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// GetOutputKey returns the session state key for saving responses.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// HistoryTokenBudget returns the token budget for conversation history.
func (a *ModelAgent) HistoryTokenBudget() int { return a.historyTokenBudget }

// ResolveInstructions produces the system prompt by resolving the static or
// dynamic instruction source.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run implements core.Agent using the flow selector to choose an execution
// strategy, then streams flow events into the run context.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	fl := flow.NewSelector().SelectFlow(a)
	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	eventChan, errChan, err := fl.Execute(runCtx)
	if err != nil {
		return fmt.Errorf("flow execution failed: %w", err)
	}

	var flowErr error
	for eventChan != nil || errChan != nil {
		select {
		case event, ok := <-eventChan:
			if !ok {
				eventChan = nil
				continue
			}
			select {
			case runCtx.Emit <- event:
				runCtx.LogDebug("agent.event.forward",
					"agent", a.Name(),
					"event_id", event.ID,
					"fn_calls", len(event.GetFunctionCalls()),
				)
			case <-runCtx.Done():
				return runCtx.Err()
			}
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil && flowErr == nil {
				flowErr = err
			}
		case <-runCtx.Done():
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", runCtx.Err())
			return runCtx.Err()
		}
	}

	if flowErr != nil {
		runCtx.LogError("agent.flow.error", "agent", a.Name(), "error", flowErr.Error())
		return flowErr
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())
	return nil
}
