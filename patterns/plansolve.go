package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

const planSolvePlanInstructions = `You are a planner. Break the task into a short ordered list of concrete steps.
Respond with one step per line, numbered like "1. <step>". Do not execute the steps.`

const planSolveExecuteInstructions = `You are an executor working through a plan one step at a time.
Use the results of earlier steps. Respond with the result of the current step only.`

const planSolveAnswerInstructions = `You are a synthesizer. Given a task, the plan and the step results, write the final answer to the task.`

var planStepRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*(.+)$`)

// PlanSolveOptions configures a Plan-and-Solve agent.
type PlanSolveOptions struct {
	Tools     []tool.Tool
	OutputKey string
}

// PlanSolve first asks the model for an ordered step plan, then executes
// the steps sequentially with each step seeing prior results, and finally
// synthesizes the answer from the accumulated results.
type PlanSolve struct {
	*BasePattern
}

// NewPlanSolve creates a Plan-and-Solve agent driven by m.
func NewPlanSolve(name string, m model.Model, optFns ...func(o *PlanSolveOptions)) *PlanSolve {
	opts := PlanSolveOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &PlanSolve{BasePattern: newBasePattern(name, m, opts.Tools, opts.OutputKey)}
}

// Run plans, executes each step in order, then synthesizes the answer.
func (a *PlanSolve) Run(runCtx *core.RunContext) error {
	task := taskText(runCtx)

	planText, err := a.generate(runCtx, planSolvePlanInstructions, "Task: "+task)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	steps := parsePlanSteps(planText)
	if len(steps) == 0 {
		return fmt.Errorf("plan: no steps parsed from planner output")
	}

	stepsData := make([]any, len(steps))
	for i, s := range steps {
		stepsData[i] = s
	}
	if err := a.emitStep(runCtx, "plan", map[string]any{"steps": stepsData}); err != nil {
		return err
	}

	var results []string
	for i, step := range steps {
		prompt := buildStepPrompt(task, steps, results, i)
		result, err := a.generate(runCtx, planSolveExecuteInstructions, prompt)
		if err != nil {
			return fmt.Errorf("execute step %d: %w", i+1, err)
		}
		results = append(results, strings.TrimSpace(result))

		if err := a.emitStep(runCtx, "step_result", map[string]any{
			"step":   step,
			"index":  i + 1,
			"result": results[i],
		}); err != nil {
			return err
		}
	}

	answer, err := a.generate(runCtx, planSolveAnswerInstructions, buildAnswerPrompt(task, steps, results))
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	return a.emitFinal(runCtx, strings.TrimSpace(answer))
}

// parsePlanSteps extracts the numbered step lines from planner output.
func parsePlanSteps(planText string) []string {
	var steps []string
	for _, m := range planStepRe.FindAllStringSubmatch(planText, -1) {
		step := strings.TrimSpace(m[1])
		if step != "" {
			steps = append(steps, step)
		}
	}
	return steps
}

func buildStepPrompt(task string, steps, results []string, current int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nPlan:\n", task)
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	if len(results) > 0 {
		b.WriteString("\nResults so far:\n")
		for i, r := range results {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r)
		}
	}
	fmt.Fprintf(&b, "\nExecute step %d: %s", current+1, steps[current])
	return b.String()
}

func buildAnswerPrompt(task string, steps, results []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nPlan and results:\n", task)
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n   Result: %s\n", i+1, s, results[i])
	}
	b.WriteString("\nWrite the final answer.")
	return b.String()
}
