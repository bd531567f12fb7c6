// Package agentpatterns provides a high-level façade over the engine and
// service abstractions (sessions, artifacts, memory & logging) for running
// reasoning patterns with minimal setup. Most applications interact with
// this package by:
//  1. Creating an App via New() (optionally overriding default in-memory services)
//  2. Registering agents, either prebuilt or by pattern name (RegisterPattern)
//  3. Running them asynchronously (Run) or synchronously (RunSync)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations and a structured logger.
package agentpatterns

import (
	"context"

	"github.com/osok/agent-patterns/artifact"
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/engine"
	"github.com/osok/agent-patterns/logging"
	"github.com/osok/agent-patterns/memory"
	"github.com/osok/agent-patterns/model"
	"github.com/osok/agent-patterns/patterns"
	"github.com/osok/agent-patterns/session"
)

// Options configures the App instance.
type Options struct {
	// EngineConfig tunes concurrency, buffering and run limits.
	EngineConfig engine.Config

	// Stores default to in-memory implementations when not provided.
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Logger defaults to a no-op logger when nil.
	Logger logging.Logger
}

// App is the high-level façade aggregating the underlying engine and services.
type App struct {
	opts   Options
	engine core.Engine
}

// New creates an App with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *App {
	opts := Options{
		EngineConfig:  engine.DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(
		engine.WithConfig(opts.EngineConfig),
		engine.WithSessionStore(opts.SessionStore),
		engine.WithArtifactStore(opts.ArtifactStore),
		engine.WithMemoryStore(opts.MemoryStore),
		engine.WithLogger(opts.Logger),
	)

	return &App{opts: opts, engine: e}
}

// Register adds an agent to the underlying engine.
func (a *App) Register(ag core.Agent) { a.engine.Register(ag) }

// RegisterPattern builds the named reasoning pattern as an agent and
// registers it. The pattern identifier must be one of patterns.Names().
func (a *App) RegisterPattern(pattern, agentName string, m model.Model, p patterns.Params) (core.Agent, error) {
	ag, err := patterns.New(pattern, agentName, m, p)
	if err != nil {
		return nil, err
	}
	a.engine.Register(ag)
	return ag, nil
}

// Run starts an asynchronous run returning event & error channels.
func (a *App) Run(
	ctx context.Context,
	sessionID, agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return a.engine.Run(ctx, sessionID, agentName, userContent)
}

// RunSync executes an agent to completion, collecting all emitted events.
func (a *App) RunSync(
	ctx context.Context,
	sessionID, agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	return a.engine.RunSync(ctx, sessionID, agentName, userContent)
}

// Cancel aborts an in-flight run by ID.
func (a *App) Cancel(runID string) { a.engine.Cancel(runID) }

// Engine exposes the underlying engine for advanced use.
func (a *App) Engine() core.Engine { return a.engine }
