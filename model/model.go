package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/osok/agent-patterns/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider
// branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by flows and patterns.
// Candidates > 1 asks the provider for that many independent completions of
// the same prompt; providers without native support sample sequentially.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	Candidates   int              `json:"candidates,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model. For
// multi-candidate requests, CandidateIndex identifies which sample a final
// response belongs to.
type Response struct {
	ID             string       `json:"id"`
	Partial        bool         `json:"partial"`
	Content        core.Content `json:"content"`
	FinishReason   string       `json:"finish_reason"`
	CandidateIndex int          `json:"candidate_index,omitempty"`
	Usage          *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows, agents and patterns to
// drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns the final (non-partial)
// responses in arrival order. Convenience for callers that do not stream.
func Collect(ctx context.Context, m Model, req Request) ([]Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var finals []Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return finals, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				finals = append(finals, resp)
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return finals, err
			}
		}
	}

	if len(finals) == 0 {
		return nil, fmt.Errorf("model returned no final response")
	}

	return finals, nil
}

// CollectText runs Collect and returns the concatenated text of the first
// final response.
func CollectText(ctx context.Context, m Model, req Request) (string, error) {
	finals, err := Collect(ctx, m, req)
	if err != nil {
		return "", err
	}
	return finals[0].Content.Text(), nil
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses can be keyed by prompt text (AddResponse) or scripted in order
// (Queue); scripted responses take precedence.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	scripted  []string
	calls     int
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Queue appends scripted completions returned in order across Generate calls.
func (m *MockModel) Queue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, responses...)
}

// Calls returns how many completions the mock has served. Multi-candidate
// requests count once per candidate.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockModel) nextResponse(inputText string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.scripted) > 0 {
		resp := m.scripted[0]
		m.scripted = m.scripted[1:]
		return resp
	}
	if resp, ok := m.responses[inputText]; ok {
		return resp
	}
	return fmt.Sprintf("Mock response to: %s", inputText)
}

// Generate implements Model; emits optional streaming char chunks then one
// final response per requested candidate.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		last := req.Contents[len(req.Contents)-1]
		inputText := last.Text()

		candidates := req.Candidates
		if candidates < 1 {
			candidates = 1
		}
		for i := 0; i < candidates; i++ {
			full := m.nextResponse(inputText)
			if req.Stream && i == 0 {
				for _, r := range full {
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case respCh <- Response{
						Partial: true,
						Content: core.Content{
							Role:  "assistant",
							Parts: []core.Part{core.TextPart{Text: string(r)}},
						},
					}:
					}
				}
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- Response{
				Partial: false,
				Content: core.Content{
					Role:  "assistant",
					Parts: []core.Part{core.TextPart{Text: full}},
				},
				FinishReason:   "stop",
				CandidateIndex: i,
			}:
			}
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
