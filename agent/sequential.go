package agent

import (
	"fmt"

	"github.com/osok/agent-patterns/core"
)

// SequentialAgent executes child agents one after another with shared
// session state. Each agent's output becomes available to subsequent agents
// through the session. The first error stops the sequence.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a sequential execution coordinator.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
}

// Run implements core.Agent. The same run context is passed to all children
// so state accumulates across steps.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for _, child := range s.children {
		if err := child.Run(runCtx); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}
	return nil
}
