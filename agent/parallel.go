package agent

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/osok/agent-patterns/core"
)

// ParallelAgent executes child agents concurrently. Each child receives a
// cloned run context with its own branch path so pending state deltas and
// artifacts stay isolated while the shared session remains visible.
type ParallelAgent struct {
	BaseAgent
	children    []core.Agent
	maxParallel int
}

// ParallelOption configures a ParallelAgent.
type ParallelOption func(*ParallelAgent)

// WithMaxParallel bounds the number of children running concurrently.
// Values below one mean unbounded.
func WithMaxParallel(n int) ParallelOption {
	return func(p *ParallelAgent) { p.maxParallel = n }
}

// NewParallelAgent creates a parallel execution coordinator.
func NewParallelAgent(name string, children []core.Agent, opts ...ParallelOption) *ParallelAgent {
	p := &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// branchContext clones the parent context and assigns a branch path for the
// child, isolating its pending deltas and artifacts.
func (p *ParallelAgent) branchContext(runCtx *core.RunContext, child core.Agent) *core.RunContext {
	cloned := runCtx.Clone()
	cloned.Branch = buildBranchPath(runCtx.Branch, fmt.Sprintf("%s.%s", p.Name(), child.Name()))
	return cloned
}

// Run implements core.Agent, launching all children concurrently. All
// children run to completion; the first error is returned.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	g := new(errgroup.Group)
	if p.maxParallel > 0 {
		g.SetLimit(p.maxParallel)
	}

	for _, child := range p.children {
		g.Go(func() error {
			branchCtx := p.branchContext(runCtx, child)
			if err := child.Run(branchCtx); err != nil {
				return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
			}
			return nil
		})
	}

	return g.Wait()
}
