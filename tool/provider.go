package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/osok/agent-patterns/logging"
)

// Provider supplies a dynamic set of tools, typically discovered from an
// external process or service (e.g. an MCP server). Providers may connect
// lazily; Tools must be safe to call repeatedly.
type Provider interface {
	// Name identifies the provider for logging and error reporting.
	Name() string

	// Tools returns the provider's current tool set.
	Tools(ctx context.Context) ([]Tool, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Registry aggregates statically registered tools and dynamic providers into
// one dispatch surface. Name collisions resolve first-wins: static tools in
// registration order, then provider tools in provider registration order.
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	static    []Tool
	providers []Provider
	logger    logging.Logger
}

// NewRegistry constructs an empty registry. A nil logger disables logging.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{logger: logger}
}

// Register adds static tools. Later registrations never shadow earlier names.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static = append(r.static, tools...)
}

// RegisterProvider adds a dynamic tool provider.
func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.logger.Info("tool.provider.registered", "provider", p.Name())
}

// Resolve returns the first tool matching name, searching static tools first
// and then providers in registration order.
func (r *Registry) Resolve(ctx context.Context, name string) (Tool, error) {
	r.mu.RLock()
	static := append([]Tool(nil), r.static...)
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	for _, t := range static {
		if t.Name() == name {
			return t, nil
		}
	}

	for _, p := range providers {
		tools, err := p.Tools(ctx)
		if err != nil {
			r.logger.Warn("tool.provider.list_failed", "provider", p.Name(), "error", err.Error())
			continue
		}
		for _, t := range tools {
			if t.Name() == name {
				return t, nil
			}
		}
	}

	return nil, fmt.Errorf("tool %q not found", name)
}

// All returns the combined tool set with duplicate names dropped first-wins.
func (r *Registry) All(ctx context.Context) ([]Tool, error) {
	r.mu.RLock()
	static := append([]Tool(nil), r.static...)
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	seen := map[string]bool{}
	var out []Tool

	add := func(t Tool) {
		if seen[t.Name()] {
			r.logger.Debug("tool.registry.duplicate_skipped", "tool", t.Name())
			return
		}
		seen[t.Name()] = true
		out = append(out, t)
	}

	for _, t := range static {
		add(t)
	}

	var firstErr error
	for _, p := range providers {
		tools, err := p.Tools(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("provider %s: %w", p.Name(), err)
			}
			continue
		}
		for _, t := range tools {
			add(t)
		}
	}

	if out == nil && firstErr != nil {
		return nil, firstErr
	}

	return out, nil
}

// Close shuts down all registered providers, returning the first error.
func (r *Registry) Close() error {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	var firstErr error
	for _, p := range providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("provider %s: %w", p.Name(), err)
		}
	}
	return firstErr
}
