package flow

// MultiAgentFlow executes an agent that may call tools and transfer control
// to sub-agents. It extends the single-agent processors with dynamic
// injection of the transfer tool definition.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a flow with the default processors.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)
	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewTransferToolInjector())
	return &MultiAgentFlow{BaseFlow: baseFlow}
}
