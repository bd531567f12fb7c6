package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

const rewooPlanInstructions = `You are a planner. Decompose the task into tool calls that gather the
evidence needed to answer it.

Available tools:
%s
For each step write two lines:
Plan: <what this step achieves>
#E<n> = <tool name>[<tool input>]

Number the evidence variables #E1, #E2, ... in order. A later step's input
may reference earlier evidence by its variable, e.g. #E1.`

const rewooSolveInstructions = `You are a solver. Use the plan and the collected evidence to answer the
task. Respond with the answer only.`

var rewooStepRe = regexp.MustCompile(`(?m)^#E(\d+)\s*=\s*([\w-]+)\[(.*)\]\s*$`)

var rewooPlaceholderRe = regexp.MustCompile(`#E(\d+)`)

// rewooStep is one planned tool call with its evidence variable.
type rewooStep struct {
	Evidence string // "#E1"
	Tool     string
	Input    string
	Plan     string
}

// REWOOOptions configures a REWOO agent.
type REWOOOptions struct {
	Tools     []tool.Tool
	OutputKey string
}

// REWOO implements reasoning without observation: a planner emits the
// whole tool plan up front with #E<n> evidence placeholders, a worker
// executes the steps resolving placeholder references from earlier
// evidence, and a solver composes the final answer from the plan and the
// evidence map.
type REWOO struct {
	*BasePattern
}

// NewREWOO creates a REWOO agent driven by m.
func NewREWOO(name string, m model.Model, optFns ...func(o *REWOOOptions)) *REWOO {
	opts := REWOOOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &REWOO{BasePattern: newBasePattern(name, m, opts.Tools, opts.OutputKey)}
}

// Run plans once, works through the steps, then solves.
func (a *REWOO) Run(runCtx *core.RunContext) error {
	task := taskText(runCtx)

	planText, err := a.generate(runCtx, fmt.Sprintf(rewooPlanInstructions, a.toolCatalog()), "Task: "+task)
	if err != nil {
		return fmt.Errorf("rewoo plan: %w", err)
	}

	steps := parseREWOOPlan(planText)
	if len(steps) == 0 {
		return fmt.Errorf("rewoo plan: no steps parsed from planner output")
	}

	planData := make([]any, len(steps))
	for i, s := range steps {
		planData[i] = map[string]any{"evidence": s.Evidence, "tool": s.Tool, "input": s.Input, "plan": s.Plan}
	}
	if err := a.emitStep(runCtx, "plan", map[string]any{"steps": planData}); err != nil {
		return err
	}

	evidence := make(map[string]string, len(steps))
	for _, step := range steps {
		input := substituteEvidence(step.Input, evidence)

		callEv := core.NewFunctionCallEvent(a.Name(), step.Tool, input)
		if err := a.emitEvent(runCtx, callEv); err != nil {
			return err
		}

		result, toolErr := a.callTool(runCtx, step.Tool, parseActionInput(input))
		if toolErr != nil {
			result = "error: " + toolErr.Error()
		}
		evidence[step.Evidence] = result

		respEv := core.NewFunctionResponseEvent(a.Name(), callEv.ID, step.Tool, result, toolErr)
		if err := a.emitEvent(runCtx, respEv); err != nil {
			return err
		}
	}

	answer, err := a.generate(runCtx, rewooSolveInstructions, rewooSolvePrompt(task, steps, evidence))
	if err != nil {
		return fmt.Errorf("rewoo solve: %w", err)
	}

	return a.emitFinal(runCtx, strings.TrimSpace(answer))
}

// parseREWOOPlan extracts the "#En = tool[input]" steps and the Plan line
// preceding each of them.
func parseREWOOPlan(planText string) []rewooStep {
	var steps []rewooStep

	lines := strings.Split(planText, "\n")
	lastPlan := ""
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Plan:") {
			lastPlan = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "Plan:"))
			continue
		}
		if m := rewooStepRe.FindStringSubmatch(line); m != nil {
			steps = append(steps, rewooStep{
				Evidence: "#E" + m[1],
				Tool:     strings.TrimSpace(m[2]),
				Input:    strings.TrimSpace(m[3]),
				Plan:     lastPlan,
			})
			lastPlan = ""
		}
	}
	return steps
}

// substituteEvidence replaces every #E<n> occurrence with its collected
// evidence. Unresolved placeholders are left intact.
func substituteEvidence(input string, evidence map[string]string) string {
	return rewooPlaceholderRe.ReplaceAllStringFunc(input, func(ref string) string {
		if v, ok := evidence[ref]; ok {
			return v
		}
		return ref
	})
}

func rewooSolvePrompt(task string, steps []rewooStep, evidence map[string]string) string {
	var b strings.Builder
	b.WriteString("Task: " + task + "\n\nPlan and evidence:\n")
	for _, s := range steps {
		if s.Plan != "" {
			b.WriteString("Plan: " + s.Plan + "\n")
		}
		fmt.Fprintf(&b, "%s = %s[%s]\n%s: %s\n", s.Evidence, s.Tool, s.Input, s.Evidence, evidence[s.Evidence])
	}
	b.WriteString("\nAnswer the task.")
	return b.String()
}
