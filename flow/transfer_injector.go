package flow

import (
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// TransferToolInjector adds the transfer_to_agent tool definition to the
// request when the agent may hand control to a sub-agent. The definition is
// injected at request level so agent construction does not need to register
// the tool explicitly.
type TransferToolInjector struct {
	transferTool tool.Tool
}

// NewTransferToolInjector creates a new injector.
func NewTransferToolInjector() *TransferToolInjector {
	return &TransferToolInjector{transferTool: tool.NewTransferToAgentTool()}
}

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_injector" }

// ProcessRequest appends the transfer tool definition when applicable,
// never duplicating an existing definition.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() || len(agent.GetSubAgents()) == 0 {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == p.transferTool.Name() {
			return nil
		}
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        p.transferTool.Name(),
			Description: p.transferTool.Description(),
			Parameters:  p.transferTool.Parameters(),
		},
	})
	return nil
}
