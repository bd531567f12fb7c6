package config

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/logging"
	"github.com/osok/agent-patterns/memory"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/model/anthropic"
	"github.com/osok/agent-patterns/model/openai"
	"github.com/osok/agent-patterns/tool"
	"github.com/osok/agent-patterns/tool/mcp"
)

// BuildLogger creates the CLI logger from the logging section.
func (c *Config) BuildLogger() logging.Logger {
	level := logging.LevelInfo
	switch c.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    c.Logging.Format,
		Component: "cli",
	})
}

// BuildModel creates the configured model adapter.
func (c *Config) BuildModel() (model.Model, error) {
	switch c.Model.Provider {
	case "openai":
		var clientOpts []option.RequestOption
		if c.Model.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(c.Model.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openai.NewModelFromClient(&client, func(o *openai.Options) {
			if c.Model.Name != "" {
				o.Model = c.Model.Name
			}
			if c.Model.Temperature > 0 {
				o.Temperature = c.Model.Temperature
			}
			if c.Model.MaxTokens > 0 {
				o.MaxCompletionTokens = c.Model.MaxTokens
			}
		}), nil

	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if c.Model.Name != "" {
				o.Model = anthropicsdk.Model(c.Model.Name)
			}
			if c.Model.Temperature > 0 {
				o.Temperature = c.Model.Temperature
			}
			if c.Model.MaxTokens > 0 {
				o.MaxTokens = c.Model.MaxTokens
			}
			o.APIKey = c.Model.APIKey
		}), nil

	default:
		return nil, fmt.Errorf("config: model.provider: unknown provider %q", c.Model.Provider)
	}
}

// BuildMemory creates the configured memory backend. The vector backend
// serves semantic recall; episodic and procedural records stay in process
// memory alongside it.
func (c *Config) BuildMemory() (core.MemoryStore, error) {
	switch c.Memory.Backend {
	case "", "in-memory":
		return memory.NewInMemoryStore(), nil

	case "vector":
		embedder := memory.NewOpenAIEmbedder(func(o *memory.OpenAIEmbedderOptions) {
			if c.Memory.EmbedderModel != "" {
				o.Model = openaisdk.EmbeddingModel(c.Memory.EmbedderModel)
			}
		})
		vector, err := memory.NewVectorStore(embedder, func(o *memory.VectorStoreOptions) {
			o.PersistPath = c.Memory.PersistPath
		})
		if err != nil {
			return nil, fmt.Errorf("config: memory: %w", err)
		}
		return memory.NewCompositeStore(map[memory.RecordType]core.MemoryStore{
			memory.Semantic:   vector,
			memory.Episodic:   memory.NewInMemoryStore(),
			memory.Procedural: memory.NewInMemoryStore(),
		}), nil

	default:
		return nil, fmt.Errorf("config: memory.backend: unknown backend %q", c.Memory.Backend)
	}
}

// BuildToolRegistry creates a registry with one provider per configured MCP
// server. Providers connect lazily on first use; the caller owns Close.
func (c *Config) BuildToolRegistry(logger logging.Logger) (*tool.Registry, error) {
	registry := tool.NewRegistry(logger)
	for _, srv := range c.Tools.MCP {
		provider, err := mcp.New(mcp.Config{
			Name:    srv.Name,
			Command: srv.Command,
			Args:    srv.Args,
			Env:     srv.Env,
			Include: srv.Include,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("config: tools.mcp: %w", err)
		}
		registry.RegisterProvider(provider)
	}
	return registry, nil
}

// BuildEngine creates an engine with the configured limits, memory backend
// and logger. Zero-valued limits keep the engine defaults.
func (c *Config) BuildEngine(logger logging.Logger) (*engine.Engine, error) {
	mem, err := c.BuildMemory()
	if err != nil {
		return nil, err
	}

	cfg := engine.DefaultConfig
	if c.Engine.MaxConcurrentRuns > 0 {
		cfg.MaxConcurrentRuns = c.Engine.MaxConcurrentRuns
	}
	if c.Engine.EventBufferSize > 0 {
		cfg.EventBufferSize = c.Engine.EventBufferSize
	}
	if c.Engine.MaxModelCalls > 0 {
		cfg.MaxModelCalls = c.Engine.MaxModelCalls
	}
	if c.Engine.MaxTransfers > 0 {
		cfg.MaxTransfers = c.Engine.MaxTransfers
	}

	return engine.New(
		engine.WithConfig(cfg),
		engine.WithMemoryStore(mem),
		engine.WithLogger(logger),
	), nil
}
