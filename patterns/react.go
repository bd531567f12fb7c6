package patterns

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// DefaultReActMaxIterations bounds the think/act/observe loop.
const DefaultReActMaxIterations = 10

const reactInstructions = `You are a reasoning agent that solves tasks step by step.

You have access to the following tools:
%s
On each turn respond in exactly one of two formats.

To use a tool:
Thought: <your reasoning>
Action: <tool name>
Action Input: <tool arguments as a JSON object>

To finish:
Thought: <your reasoning>
Final Answer: <the answer to the task>`

var (
	reactActionRe      = regexp.MustCompile(`(?m)^Action:\s*(.+)$`)
	reactActionInputRe = regexp.MustCompile(`(?ms)^Action Input:\s*(.+?)\s*(?:^Thought:|\z)`)
	reactFinalRe       = regexp.MustCompile(`(?ms)^Final Answer:\s*(.+)\z`)
)

// ReActOptions configures a ReAct agent.
type ReActOptions struct {
	// Tools available to the agent.
	Tools []tool.Tool

	// OutputKey is the session state key for the final answer.
	OutputKey string

	// MaxIterations bounds the think/act/observe loop.
	MaxIterations int
}

// ReAct runs the think, act, observe loop: the model reasons about the
// task, requests tool calls, sees their observations and repeats until it
// produces a final answer or the iteration budget runs out.
type ReAct struct {
	*BasePattern
	maxIterations int
}

// NewReAct creates a ReAct agent driven by m.
func NewReAct(name string, m model.Model, optFns ...func(o *ReActOptions)) *ReAct {
	opts := ReActOptions{MaxIterations: DefaultReActMaxIterations}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultReActMaxIterations
	}

	return &ReAct{
		BasePattern:   newBasePattern(name, m, opts.Tools, opts.OutputKey),
		maxIterations: opts.MaxIterations,
	}
}

// Run executes the loop until a final answer or the iteration budget.
func (a *ReAct) Run(runCtx *core.RunContext) error {
	task := taskText(runCtx)
	instructions := fmt.Sprintf(reactInstructions, a.toolCatalog())

	var transcript strings.Builder
	transcript.WriteString("Task: " + task + "\n\n")

	for iter := 1; iter <= a.maxIterations; iter++ {
		output, err := a.generate(runCtx, instructions, transcript.String())
		if err != nil {
			return fmt.Errorf("react iteration %d: %w", iter, err)
		}

		if m := reactFinalRe.FindStringSubmatch(output); m != nil {
			answer := strings.TrimSpace(m[1])
			runCtx.LogDebug("react.final", "agent", a.Name(), "iteration", iter)
			return a.emitFinal(runCtx, answer)
		}

		action := reactActionRe.FindStringSubmatch(output)
		if action == nil {
			// Neither an action nor a final answer; treat the whole output
			// as the answer rather than looping on an unparseable turn.
			return a.emitFinal(runCtx, strings.TrimSpace(output))
		}

		toolName := strings.TrimSpace(action[1])
		rawArgs := ""
		if m := reactActionInputRe.FindStringSubmatch(output); m != nil {
			rawArgs = strings.TrimSpace(m[1])
		}
		args := parseActionInput(rawArgs)

		callEv := core.NewFunctionCallEvent(a.Name(), toolName, rawArgs)
		if err := a.emitEvent(runCtx, callEv); err != nil {
			return err
		}

		observation, toolErr := a.callTool(runCtx, toolName, args)
		respEv := core.NewFunctionResponseEvent(a.Name(), callEv.ID, toolName, observation, toolErr)
		if err := a.emitEvent(runCtx, respEv); err != nil {
			return err
		}

		if toolErr != nil {
			observation = "error: " + toolErr.Error()
		}

		transcript.WriteString(output + "\n")
		transcript.WriteString("Observation: " + observation + "\n")
	}

	return fmt.Errorf("react: no final answer after %d iterations", a.maxIterations)
}

// parseActionInput decodes a JSON object argument, falling back to a single
// "input" argument for plain-text action inputs.
func parseActionInput(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}

	return map[string]any{"input": strings.Trim(raw, `"`)}
}
