package flow

import (
	"fmt"
	"strings"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/internal/util"
	"github.com/osok/agent-patterns/model"
)

// InstructionsProcessor resolves the agent's instructions and renders any
// template placeholders against the session state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the system instructions on the request. The model
// adapters place Instructions into the provider's system message, so no
// processor may add them to Contents as well.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	runCtx.LogDebug("agent.instructions.resolved", "agent", agent.GetName(), "length", len(instructions))

	if runCtx.Session != nil && runCtx.Session.State != nil {
		rendered, err := util.RenderTemplate(instructions, runCtx.Session.State)
		if err != nil {
			return fmt.Errorf("render instructions: %w", err)
		}
		req.Instructions = rendered
		return nil
	}

	req.Instructions = instructions
	return nil
}

const (
	// DefaultTokenBudget bounds the conversation history sent to the model.
	DefaultTokenBudget = 8000
	// DefaultPreserveRecent is the number of most recent messages kept even
	// when the budget is exhausted.
	DefaultPreserveRecent = 5
)

// ContentsProcessor assembles the conversation history into the request,
// trimming oldest messages first when the token budget is exceeded.
type ContentsProcessor struct {
	preserveRecent int
}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor {
	return &ContentsProcessor{preserveRecent: DefaultPreserveRecent}
}

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest fills req.Contents from the session history.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if runCtx.Session == nil {
		return nil
	}

	var contents []core.Content
	for _, ev := range runCtx.Session.GetConversationHistory() {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			contents = append(contents, *ev.Content)
		}
	}

	budget := agent.HistoryTokenBudget()
	if budget <= 0 {
		budget = DefaultTokenBudget
	}

	trimmed, err := p.trimToBudget(contents, budget, agent.GetModel())
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if len(trimmed) < len(contents) {
		runCtx.LogDebug("agent.history.trimmed",
			"agent", agent.GetName(),
			"kept", len(trimmed),
			"dropped", len(contents)-len(trimmed),
			"budget", budget,
		)
	}

	req.Contents = trimmed
	return nil
}

// trimToBudget drops the oldest messages until the remainder fits the token
// budget. The most recent preserveRecent messages are always kept.
func (p *ContentsProcessor) trimToBudget(contents []core.Content, budget int, m model.Model) ([]core.Content, error) {
	if len(contents) == 0 {
		return contents, nil
	}

	// Rough byte-based estimate first; loading an encoding is only worth it
	// when the history could actually exceed the budget.
	if estimateTokens(contents) <= budget {
		return contents, nil
	}

	modelName := ""
	if m != nil {
		modelName = m.Info().Name
	}
	counter, err := util.NewTokenCounter(modelName)
	if err != nil {
		return nil, err
	}

	total := 0
	cut := len(contents)
	for i := len(contents) - 1; i >= 0; i-- {
		total += counter.Count(contentText(contents[i]))
		if total > budget && len(contents)-i > p.preserveRecent {
			break
		}
		cut = i
	}
	return contents[cut:], nil
}

// estimateTokens approximates the token count at four bytes per token plus
// a small per-message overhead.
func estimateTokens(contents []core.Content) int {
	total := 0
	for _, c := range contents {
		total += len(contentText(c))/4 + 4
	}
	return total
}

func contentText(c core.Content) string {
	var sb strings.Builder
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			sb.WriteString(part.Text)
			sb.WriteByte('\n')
		case core.FunctionCallPart:
			sb.WriteString(part.FunctionCall.Name)
			sb.WriteString(part.FunctionCall.Arguments)
		case core.FunctionResponsePart:
			sb.WriteString(fmt.Sprint(part.FunctionResponse.Response))
		}
	}
	return sb.String()
}
