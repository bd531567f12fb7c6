package patterns

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/osok/agent-patterns/agent"
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/tool"
)

// DefaultOutputKey is the session state key patterns persist their final
// answer under when no explicit key is configured.
const DefaultOutputKey = "output"

// BasePattern bundles what every reasoning pattern needs: lifecycle and
// hierarchy from agent.BaseAgent, a model, a tool set and the output key.
type BasePattern struct {
	agent.BaseAgent
	model     model.Model
	tools     map[string]tool.Tool
	outputKey string
}

func newBasePattern(name string, m model.Model, tools []tool.Tool, outputKey string) *BasePattern {
	if outputKey == "" {
		outputKey = DefaultOutputKey
	}

	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		if _, exists := byName[t.Name()]; !exists {
			byName[t.Name()] = t
		}
	}

	return &BasePattern{
		BaseAgent: agent.NewBaseAgent(name),
		model:     m,
		tools:     byName,
		outputKey: outputKey,
	}
}

// Model returns the model driving this pattern.
func (p *BasePattern) Model() model.Model { return p.model }

// OutputKey returns the session state key the final answer is stored under.
func (p *BasePattern) OutputKey() string { return p.outputKey }

// Tool returns a tool by name.
func (p *BasePattern) Tool(name string) (tool.Tool, bool) {
	t, ok := p.tools[name]
	return t, ok
}

// toolCatalog renders the tool set as "name: description" lines for prompts,
// sorted by name so prompts are stable across runs.
func (p *BasePattern) toolCatalog() string {
	names := make([]string, 0, len(p.tools))
	for name := range p.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		t := p.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	return b.String()
}

// generate runs one bounded, non-streaming model call and returns the text
// of the first final response.
func (p *BasePattern) generate(runCtx *core.RunContext, instructions, prompt string) (string, error) {
	if !runCtx.Limiter.Increment() {
		return "", fmt.Errorf("model call budget exceeded for run %s", runCtx.RunID)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewUserText(prompt)},
	}

	return model.CollectText(runCtx.Context, p.model, req)
}

// sample asks the model for n independent completions of the same prompt.
func (p *BasePattern) sample(runCtx *core.RunContext, instructions, prompt string, n int) ([]string, error) {
	if !runCtx.Limiter.Increment() {
		return nil, fmt.Errorf("model call budget exceeded for run %s", runCtx.RunID)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewUserText(prompt)},
		Candidates:   n,
	}

	finals, err := model.Collect(runCtx.Context, p.model, req)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(finals))
	for _, f := range finals {
		texts = append(texts, f.Content.Text())
	}
	return texts, nil
}

// callTool invokes a registered tool with already-decoded arguments and
// returns its result rendered as a string for prompt assembly.
func (p *BasePattern) callTool(runCtx *core.RunContext, name string, args map[string]any) (string, error) {
	t, ok := p.tools[name]
	if !ok {
		return "", fmt.Errorf("tool %s not available", name)
	}

	toolCtx := core.NewToolContext(runCtx, core.NewID())
	result, err := t.Call(toolCtx, args)
	if err != nil {
		return "", err
	}

	return renderResult(result), nil
}

// emitEvent binds an event to the run, emits it and waits for the engine
// to persist it.
func (p *BasePattern) emitEvent(runCtx *core.RunContext, ev core.Event) error {
	ev.RunID = runCtx.RunID

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}
	return runCtx.WaitForResume()
}

// emitStep surfaces a pattern phase as a structured data event and waits
// for the engine to persist it.
func (p *BasePattern) emitStep(runCtx *core.RunContext, step string, data map[string]any) error {
	ev := core.NewStepEvent(p.Name(), step, data)
	ev.RunID = runCtx.RunID

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}
	return runCtx.WaitForResume()
}

// emitFinal stores the answer under the output key and emits the closing
// message event.
func (p *BasePattern) emitFinal(runCtx *core.RunContext, answer string) error {
	ev := core.NewMessageEvent(p.Name(), answer)
	ev.RunID = runCtx.RunID
	turnComplete := true
	ev.TurnComplete = &turnComplete
	ev.Actions.StateDelta = map[string]any{p.outputKey: answer}

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}
	return runCtx.WaitForResume()
}

// renderResult flattens a tool result into prompt-friendly text.
func renderResult(result any) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// taskText extracts the task from the run's user content.
func taskText(runCtx *core.RunContext) string {
	return strings.TrimSpace(runCtx.UserContent.Text())
}
