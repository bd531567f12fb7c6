package core

// Agent is the interface every processing unit implements, from a single
// model-backed agent to a full reasoning pattern. Agents receive input
// through a RunContext, process asynchronously and communicate results by
// emitting events.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Honor the resume handshake after non-partial events
//   - Manage their lifecycle through Start/Stop
type Agent interface {
	Name() string
	Description() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts and
// events. Name is the external identifier; Type categorizes the
// implementation (e.g. "model", "react", "lats").
type AgentInfo struct{ Name, Type string }
