package patterns

import (
	"context"
	"fmt"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/graph"
	"github.com/osok/agent-patterns/model"
)

// DefaultReasoningModules is the built-in catalog the select phase chooses
// from when no custom catalog is configured.
var DefaultReasoningModules = []string{
	"How could I devise an experiment to help solve the problem?",
	"How can I simplify the problem so that it is easier to solve?",
	"What are the key assumptions underlying this problem?",
	"How can I break down this problem into smaller, more manageable parts?",
	"Critical thinking: analyze the problem from different perspectives, question assumptions, and evaluate the evidence available.",
	"Try creative thinking, generate innovative and out-of-the-box ideas to solve the problem.",
	"Use systems thinking: consider the problem as part of a larger system and understand the interconnectedness of various elements.",
	"Use step-by-step reasoning, working through the problem methodically.",
	"What is the core issue or problem that needs to be addressed?",
	"What kinds of solution typically are produced for this kind of problem specification?",
}

const selfDiscoverySelectInstructions = `You select reasoning modules. From the numbered catalog, pick the
modules most useful for the task. Respond with the selected module texts,
one per line.`

const selfDiscoveryAdaptInstructions = `You adapt reasoning modules. Rephrase each selected module so it is
specific to the task at hand. Respond with the adapted modules, one per
line.`

const selfDiscoveryStructureInstructions = `You compose a reasoning structure. Turn the adapted modules into a
step-by-step reasoning plan for solving the task. Respond with the plan
only.`

const selfDiscoverySolveInstructions = `You solve the task by following the reasoning structure exactly, filling
in each step. End with the final answer.`

// SelfDiscoveryOptions configures a Self-Discovery agent.
type SelfDiscoveryOptions struct {
	OutputKey string

	// Modules overrides the built-in reasoning module catalog.
	Modules []string
}

// SelfDiscovery implements the four-phase self-discovery pattern on a
// state graph: select reasoning modules from a catalog, adapt them to the
// task, compose a reasoning structure, then solve following it.
type SelfDiscovery struct {
	*BasePattern
	modules []string
}

// NewSelfDiscovery creates a Self-Discovery agent driven by m.
func NewSelfDiscovery(name string, m model.Model, optFns ...func(o *SelfDiscoveryOptions)) *SelfDiscovery {
	opts := SelfDiscoveryOptions{Modules: DefaultReasoningModules}
	for _, fn := range optFns {
		fn(&opts)
	}

	if len(opts.Modules) == 0 {
		opts.Modules = DefaultReasoningModules
	}

	return &SelfDiscovery{
		BasePattern: newBasePattern(name, m, nil, opts.OutputKey),
		modules:     opts.Modules,
	}
}

// Run executes the select, adapt, structure and solve phases in order.
func (a *SelfDiscovery) Run(runCtx *core.RunContext) error {
	g, err := a.buildGraph(runCtx)
	if err != nil {
		return err
	}

	final, err := g.Run(runCtx.Context, graph.State{"task": taskText(runCtx)})
	if err != nil {
		return fmt.Errorf("self-discovery: %w", err)
	}

	return a.emitFinal(runCtx, final.GetString("answer"))
}

func (a *SelfDiscovery) buildGraph(runCtx *core.RunContext) (*graph.Graph, error) {
	g := graph.New("self-discovery", graph.WithLogger(runCtx.Logger()), graph.WithMaxSteps(5))

	phase := func(name, instructions string, prompt func(graph.State) string, key string) graph.NodeFunc {
		return func(ctx context.Context, state graph.State) (graph.State, error) {
			out, err := a.generate(runCtx, instructions, prompt(state))
			if err != nil {
				return nil, err
			}
			state[key] = strings.TrimSpace(out)

			return state, a.emitStep(runCtx, name, map[string]any{key: state.GetString(key)})
		}
	}

	catalog := func() string {
		var b strings.Builder
		for i, m := range a.modules {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m)
		}
		return b.String()
	}

	nodes := []struct {
		name string
		fn   graph.NodeFunc
	}{
		{"select", phase("select", selfDiscoverySelectInstructions, func(s graph.State) string {
			return fmt.Sprintf("Task: %s\n\nCatalog:\n%s", s.GetString("task"), catalog())
		}, "selected")},
		{"adapt", phase("adapt", selfDiscoveryAdaptInstructions, func(s graph.State) string {
			return fmt.Sprintf("Task: %s\n\nSelected modules:\n%s", s.GetString("task"), s.GetString("selected"))
		}, "adapted")},
		{"structure", phase("structure", selfDiscoveryStructureInstructions, func(s graph.State) string {
			return fmt.Sprintf("Task: %s\n\nAdapted modules:\n%s", s.GetString("task"), s.GetString("adapted"))
		}, "structure")},
		{"solve", phase("solve", selfDiscoverySolveInstructions, func(s graph.State) string {
			return fmt.Sprintf("Task: %s\n\nReasoning structure:\n%s", s.GetString("task"), s.GetString("structure"))
		}, "answer")},
	}

	for _, n := range nodes {
		if err := g.AddNode(n.name, n.fn); err != nil {
			return nil, err
		}
	}
	for i := 0; i < len(nodes)-1; i++ {
		if err := g.AddEdge(nodes[i].name, nodes[i+1].name); err != nil {
			return nil, err
		}
	}
	if err := g.AddEdge("solve", graph.End); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint("select"); err != nil {
		return nil, err
	}

	return g, nil
}
