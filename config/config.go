package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/osok/agent-patterns/patterns"
)

// Config is the root of the YAML configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Model   ModelConfig   `yaml:"model"`
	Tools   ToolsConfig   `yaml:"tools"`
	Memory  MemoryConfig  `yaml:"memory"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig selects the reasoning pattern and its parameters. Zero values
// fall back to the pattern defaults.
type AgentConfig struct {
	Name      string `yaml:"name"`
	Pattern   string `yaml:"pattern"`
	OutputKey string `yaml:"output_key"`

	MaxIterations     int     `yaml:"max_iterations"`
	MaxParallel       int     `yaml:"max_parallel"`
	Candidates        int     `yaml:"candidates"`
	ExplorationWeight float64 `yaml:"exploration_weight"`
	SolutionThreshold float64 `yaml:"solution_threshold"`
	MaxReplans        int     `yaml:"max_replans"`
	Perspectives      int     `yaml:"perspectives"`
}

// ModelConfig selects and tunes the language model provider.
type ModelConfig struct {
	// Provider is "openai" or "anthropic".
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`

	// APIKey overrides the provider's ambient environment credential.
	APIKey string `yaml:"api_key"`
}

// ToolsConfig declares tool providers available to the agent.
type ToolsConfig struct {
	MCP []MCPServerConfig `yaml:"mcp"`
}

// MCPServerConfig launches one MCP server over stdio.
type MCPServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`

	// Include limits exposed tools to those matching a glob pattern.
	Include []string `yaml:"include"`
}

// MemoryConfig selects the long-term memory backend.
type MemoryConfig struct {
	// Backend is "in-memory" or "vector".
	Backend string `yaml:"backend"`

	// PersistPath keeps the vector backend on disk. Empty stays in memory.
	PersistPath string `yaml:"persist_path"`

	// EmbedderModel names the OpenAI embedding model for the vector backend.
	EmbedderModel string `yaml:"embedder_model"`
}

// EngineConfig tunes run execution limits.
type EngineConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	EventBufferSize   int `yaml:"event_buffer_size"`
	MaxModelCalls     int `yaml:"max_model_calls"`
	MaxTransfers      int `yaml:"max_transfers"`
}

// LoggingConfig tunes the CLI logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// Default returns a configuration that runs ReAct against OpenAI with
// in-memory everything.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:    "assistant",
			Pattern: "react",
		},
		Model: ModelConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Memory: MemoryConfig{
			Backend: "in-memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func fieldErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every section and returns all field errors joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.Name == "" {
		errs = append(errs, fieldErr("agent.name", "is required"))
	}
	if c.Agent.Pattern == "" {
		errs = append(errs, fieldErr("agent.pattern", "is required"))
	} else if !slices.Contains(patterns.Names(), c.Agent.Pattern) {
		errs = append(errs, fieldErr("agent.pattern", "unknown pattern %q (available: %v)", c.Agent.Pattern, patterns.Names()))
	}
	if c.Agent.MaxIterations < 0 {
		errs = append(errs, fieldErr("agent.max_iterations", "must not be negative"))
	}
	if c.Agent.SolutionThreshold < 0 || c.Agent.SolutionThreshold > 1 {
		errs = append(errs, fieldErr("agent.solution_threshold", "must be between 0 and 1"))
	}

	switch c.Model.Provider {
	case "openai", "anthropic":
	case "":
		errs = append(errs, fieldErr("model.provider", "is required"))
	default:
		errs = append(errs, fieldErr("model.provider", "unknown provider %q (openai, anthropic)", c.Model.Provider))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fieldErr("model.temperature", "must be between 0 and 2"))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, fieldErr("model.max_tokens", "must not be negative"))
	}

	for i, srv := range c.Tools.MCP {
		if srv.Command == "" {
			errs = append(errs, fieldErr(fmt.Sprintf("tools.mcp[%d].command", i), "is required"))
		}
	}

	switch c.Memory.Backend {
	case "", "in-memory", "vector":
	default:
		errs = append(errs, fieldErr("memory.backend", "unknown backend %q (in-memory, vector)", c.Memory.Backend))
	}

	if c.Engine.MaxConcurrentRuns < 0 {
		errs = append(errs, fieldErr("engine.max_concurrent_runs", "must not be negative"))
	}
	if c.Engine.EventBufferSize < 0 {
		errs = append(errs, fieldErr("engine.event_buffer_size", "must not be negative"))
	}
	if c.Engine.MaxModelCalls < 0 {
		errs = append(errs, fieldErr("engine.max_model_calls", "must not be negative"))
	}
	if c.Engine.MaxTransfers < 0 {
		errs = append(errs, fieldErr("engine.max_transfers", "must not be negative"))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fieldErr("logging.level", "unknown level %q (debug, info, warn, error)", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fieldErr("logging.format", "unknown format %q (json, text)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Params maps the agent section onto pattern parameters. Tools are attached
// by the caller after providers are connected.
func (c *Config) Params() patterns.Params {
	return patterns.Params{
		OutputKey:         c.Agent.OutputKey,
		MaxIterations:     c.Agent.MaxIterations,
		MaxParallel:       c.Agent.MaxParallel,
		Candidates:        c.Agent.Candidates,
		ExplorationWeight: c.Agent.ExplorationWeight,
		SolutionThreshold: c.Agent.SolutionThreshold,
		MaxReplans:        c.Agent.MaxReplans,
		Perspectives:      c.Agent.Perspectives,
	}
}
