package flow

// SingleAgentFlow executes a standalone agent with instruction resolution
// and history assembly, no transfers.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a flow with the default processors.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)
	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	return &SingleAgentFlow{BaseFlow: baseFlow}
}
