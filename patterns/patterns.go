package patterns

import (
	"fmt"
	"sort"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// Params carries the tunable knobs a configuration file can set on a
// pattern. Fields that do not apply to the chosen pattern are ignored;
// zero values select the pattern defaults.
type Params struct {
	Tools     []tool.Tool
	OutputKey string

	// MaxIterations bounds the pattern's main loop: ReAct iterations,
	// Reflection rounds, Reflexion trials, LATS rollouts.
	MaxIterations int

	// MaxParallel bounds fan-out phases (LLM Compiler, STORM).
	MaxParallel int

	// Candidates is the LATS expansion width.
	Candidates int

	// ExplorationWeight is the LATS UCT constant.
	ExplorationWeight float64

	// SolutionThreshold is the LATS normalized acceptance score.
	SolutionThreshold float64

	// MaxReplans bounds LLM Compiler replanning rounds.
	MaxReplans int

	// Perspectives is the STORM research perspective count.
	Perspectives int
}

// builders maps pattern identifiers to constructors.
var builders = map[string]func(name string, m model.Model, p Params) core.Agent{
	"react": func(name string, m model.Model, p Params) core.Agent {
		return NewReAct(name, m, func(o *ReActOptions) {
			o.Tools = p.Tools
			o.OutputKey = p.OutputKey
			o.MaxIterations = p.MaxIterations
		})
	},
	"plan-solve": func(name string, m model.Model, p Params) core.Agent {
		return NewPlanSolve(name, m, func(o *PlanSolveOptions) {
			o.Tools = p.Tools
			o.OutputKey = p.OutputKey
		})
	},
	"reflection": func(name string, m model.Model, p Params) core.Agent {
		return NewReflection(name, m, func(o *ReflectionOptions) {
			o.OutputKey = p.OutputKey
			o.MaxRounds = p.MaxIterations
		})
	},
	"reflexion": func(name string, m model.Model, p Params) core.Agent {
		return NewReflexion(name, m, func(o *ReflexionOptions) {
			o.OutputKey = p.OutputKey
			o.MaxTrials = p.MaxIterations
		})
	},
	"rewoo": func(name string, m model.Model, p Params) core.Agent {
		return NewREWOO(name, m, func(o *REWOOOptions) {
			o.Tools = p.Tools
			o.OutputKey = p.OutputKey
		})
	},
	"llm-compiler": func(name string, m model.Model, p Params) core.Agent {
		return NewCompiler(name, m, func(o *CompilerOptions) {
			o.Tools = p.Tools
			o.OutputKey = p.OutputKey
			o.MaxParallel = p.MaxParallel
			o.MaxReplans = p.MaxReplans
		})
	},
	"lats": func(name string, m model.Model, p Params) core.Agent {
		return NewLATS(name, m, func(o *LATSOptions) {
			o.OutputKey = p.OutputKey
			o.MaxRollouts = p.MaxIterations
			o.NumCandidates = p.Candidates
			o.ExplorationWeight = p.ExplorationWeight
			o.SolutionThreshold = p.SolutionThreshold
		})
	},
	"self-discovery": func(name string, m model.Model, p Params) core.Agent {
		return NewSelfDiscovery(name, m, func(o *SelfDiscoveryOptions) {
			o.OutputKey = p.OutputKey
		})
	},
	"storm": func(name string, m model.Model, p Params) core.Agent {
		return NewSTORM(name, m, func(o *STORMOptions) {
			o.OutputKey = p.OutputKey
			o.MaxParallel = p.MaxParallel
			o.Perspectives = p.Perspectives
		})
	},
}

// Names lists the available pattern identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named pattern as an agent. The pattern identifier must be
// one of Names().
func New(pattern, agentName string, m model.Model, p Params) (core.Agent, error) {
	build, ok := builders[pattern]
	if !ok {
		return nil, fmt.Errorf("unknown pattern %q (available: %v)", pattern, Names())
	}
	return build(agentName, m, p), nil
}

// interface checks
var (
	_ core.Agent = (*ReAct)(nil)
	_ core.Agent = (*PlanSolve)(nil)
	_ core.Agent = (*Reflection)(nil)
	_ core.Agent = (*Reflexion)(nil)
	_ core.Agent = (*REWOO)(nil)
	_ core.Agent = (*Compiler)(nil)
	_ core.Agent = (*LATS)(nil)
	_ core.Agent = (*SelfDiscovery)(nil)
	_ core.Agent = (*STORM)(nil)
)
