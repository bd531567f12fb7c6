package patterns

import (
	"context"
	"fmt"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/graph"
	"github.com/osok/agent-patterns/model"
)

// DefaultReflectionMaxRounds bounds the critique/revise cycle.
const DefaultReflectionMaxRounds = 3

// ReflectionApproval is the marker a critic emits to accept a draft.
const ReflectionApproval = "APPROVED"

const reflectionGenerateInstructions = `You produce a high quality answer to the task.
If a critique of a previous draft is provided, revise the draft to address every point of the critique.`

const reflectionCritiqueInstructions = `You are a strict reviewer. Critique the draft answer to the task.
If the draft fully answers the task, respond with the single word APPROVED.
Otherwise list the concrete problems to fix.`

// ReflectionOptions configures a Reflection agent.
type ReflectionOptions struct {
	OutputKey string

	// MaxRounds bounds how many critique/revise cycles run before the
	// latest draft is accepted as is.
	MaxRounds int
}

// Reflection runs a generate, critique, revise cycle on a state graph. The
// cycle stops when the critic approves the draft or the round budget is
// reached; the latest draft becomes the answer either way.
type Reflection struct {
	*BasePattern
	maxRounds int
}

// NewReflection creates a Reflection agent driven by m.
func NewReflection(name string, m model.Model, optFns ...func(o *ReflectionOptions)) *Reflection {
	opts := ReflectionOptions{MaxRounds: DefaultReflectionMaxRounds}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultReflectionMaxRounds
	}

	return &Reflection{
		BasePattern: newBasePattern(name, m, nil, opts.OutputKey),
		maxRounds:   opts.MaxRounds,
	}
}

// Run builds and executes the generate/critique graph for the task.
func (a *Reflection) Run(runCtx *core.RunContext) error {
	g, err := a.buildGraph(runCtx)
	if err != nil {
		return err
	}

	final, err := g.Run(runCtx.Context, graph.State{"task": taskText(runCtx)})
	if err != nil {
		return fmt.Errorf("reflection: %w", err)
	}

	return a.emitFinal(runCtx, final.GetString("draft"))
}

func (a *Reflection) buildGraph(runCtx *core.RunContext) (*graph.Graph, error) {
	g := graph.New("reflection",
		graph.WithLogger(runCtx.Logger()),
		graph.WithMaxSteps(2*a.maxRounds+2),
	)

	generate := func(ctx context.Context, state graph.State) (graph.State, error) {
		prompt := "Task: " + state.GetString("task")
		if critique := state.GetString("critique"); critique != "" {
			prompt += "\n\nPrevious draft:\n" + state.GetString("draft")
			prompt += "\n\nCritique:\n" + critique
		}

		draft, err := a.generate(runCtx, reflectionGenerateInstructions, prompt)
		if err != nil {
			return nil, err
		}

		state["draft"] = strings.TrimSpace(draft)
		state["round"] = state.GetInt("round") + 1

		return state, a.emitStep(runCtx, "draft", map[string]any{
			"round": state.GetInt("round"),
			"draft": state.GetString("draft"),
		})
	}

	critique := func(ctx context.Context, state graph.State) (graph.State, error) {
		prompt := fmt.Sprintf("Task: %s\n\nDraft:\n%s", state.GetString("task"), state.GetString("draft"))

		review, err := a.generate(runCtx, reflectionCritiqueInstructions, prompt)
		if err != nil {
			return nil, err
		}

		review = strings.TrimSpace(review)
		state["critique"] = review
		state["approved"] = strings.HasPrefix(review, ReflectionApproval)

		return state, a.emitStep(runCtx, "critique", map[string]any{
			"round":    state.GetInt("round"),
			"critique": review,
			"approved": state.GetBool("approved"),
		})
	}

	if err := g.AddNode("generate", generate); err != nil {
		return nil, err
	}
	if err := g.AddNode("critique", critique); err != nil {
		return nil, err
	}
	if err := g.AddEdge("generate", "critique"); err != nil {
		return nil, err
	}

	router := func(state graph.State) string {
		if state.GetBool("approved") || state.GetInt("round") >= a.maxRounds {
			return graph.End
		}
		return "generate"
	}
	if err := g.AddConditionalEdge("critique", router); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint("generate"); err != nil {
		return nil, err
	}

	return g, nil
}
