// Package graph implements a small directed state-graph runner. Nodes are
// functions that transform a State; edges are either static or computed from
// the state after a node completes. Reasoning patterns compose their control
// flow (plan, act, reflect, finish) as graphs and let the runner enforce step
// budgets and cancellation.
package graph

import (
	"context"
	"fmt"

	"github.com/osok/agent-patterns/logging"
)

// End is the terminal node name. Routing to End stops the run.
const End = "__end__"

// DefaultMaxSteps bounds a run when no explicit budget is configured.
const DefaultMaxSteps = 50

// NodeFunc transforms the state at one step of the graph.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouterFunc inspects the state after a node ran and names the next node.
// Returning End terminates the run.
type RouterFunc func(state State) string

// TraceFunc observes each completed step. The state snapshot is a copy and
// safe to retain.
type TraceFunc func(step int, node string, state State)

// Graph is a named set of nodes with static and conditional edges. Build it
// with AddNode / AddEdge / AddConditionalEdge, set the entry point, then call
// Run. A Graph is immutable during Run and safe for concurrent runs.
type Graph struct {
	name     string
	nodes    map[string]NodeFunc
	edges    map[string]string
	routers  map[string]RouterFunc
	entry    string
	maxSteps int
	trace    TraceFunc
	logger   logging.Logger
}

// Option customizes graph construction.
type Option func(*Graph)

// WithMaxSteps overrides the default step budget. Values <= 0 keep the default.
func WithMaxSteps(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxSteps = n
		}
	}
}

// WithTrace installs a per-step observer.
func WithTrace(fn TraceFunc) Option {
	return func(g *Graph) { g.trace = fn }
}

// WithLogger sets the logger used for step-level diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// New creates an empty graph.
func New(name string, opts ...Option) *Graph {
	g := &Graph{
		name:     name,
		nodes:    map[string]NodeFunc{},
		edges:    map[string]string{},
		routers:  map[string]RouterFunc{},
		maxSteps: DefaultMaxSteps,
		logger:   logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// AddNode registers a node. Registering a duplicate or reserved name errors.
func (g *Graph) AddNode(name string, fn NodeFunc) error {
	if name == "" || name == End {
		return fmt.Errorf("graph %s: invalid node name %q", g.name, name)
	}
	if fn == nil {
		return fmt.Errorf("graph %s: node %s has nil func", g.name, name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("graph %s: duplicate node %s", g.name, name)
	}
	g.nodes[name] = fn
	return nil
}

// AddEdge registers a static transition from one node to the next. The target
// may be End.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("graph %s: edge from unknown node %s", g.name, from)
	}
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("graph %s: node %s already has an edge", g.name, from)
	}
	if _, exists := g.routers[from]; exists {
		return fmt.Errorf("graph %s: node %s already has a conditional edge", g.name, from)
	}
	g.edges[from] = to
	return nil
}

// AddConditionalEdge registers a router that picks the next node from the
// state after from completes.
func (g *Graph) AddConditionalEdge(from string, router RouterFunc) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("graph %s: conditional edge from unknown node %s", g.name, from)
	}
	if router == nil {
		return fmt.Errorf("graph %s: node %s has nil router", g.name, from)
	}
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("graph %s: node %s already has an edge", g.name, from)
	}
	if _, exists := g.routers[from]; exists {
		return fmt.Errorf("graph %s: node %s already has a conditional edge", g.name, from)
	}
	g.routers[from] = router
	return nil
}

// SetEntryPoint names the node a run starts at.
func (g *Graph) SetEntryPoint(name string) error {
	if _, ok := g.nodes[name]; !ok {
		return fmt.Errorf("graph %s: entry point %s is not a node", g.name, name)
	}
	g.entry = name
	return nil
}

// Validate checks that the graph is runnable: an entry point exists and every
// edge target is a known node or End.
func (g *Graph) Validate() error {
	if g.entry == "" {
		return fmt.Errorf("graph %s: no entry point", g.name)
	}
	for from, to := range g.edges {
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("graph %s: edge %s -> %s targets unknown node", g.name, from, to)
			}
		}
	}
	return nil
}

// Run executes the graph from the entry point until a transition reaches End,
// the step budget is exhausted, or the context is cancelled. The initial
// state is cloned so the caller's map is never mutated.
func (g *Graph) Run(ctx context.Context, initial State) (State, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	state := initial.Clone()
	if state == nil {
		state = State{}
	}

	current := g.entry
	for step := 1; ; step++ {
		if step > g.maxSteps {
			return state, fmt.Errorf("graph %s: step budget of %d exhausted at node %s", g.name, g.maxSteps, current)
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		fn, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("graph %s: transition to unknown node %s", g.name, current)
		}

		g.logger.Debug("graph.step", "graph", g.name, "step", step, "node", current)

		next, err := fn(ctx, state)
		if err != nil {
			return state, fmt.Errorf("graph %s: node %s: %w", g.name, current, err)
		}
		if next != nil {
			state = next
		}

		if g.trace != nil {
			g.trace(step, current, state.Clone())
		}

		target, err := g.next(current, state)
		if err != nil {
			return state, err
		}
		if target == End {
			return state, nil
		}
		current = target
	}
}

func (g *Graph) next(current string, state State) (string, error) {
	if router, ok := g.routers[current]; ok {
		target := router(state)
		if target == "" {
			return "", fmt.Errorf("graph %s: router for node %s returned empty target", g.name, current)
		}
		return target, nil
	}
	if target, ok := g.edges[current]; ok {
		return target, nil
	}
	return "", fmt.Errorf("graph %s: node %s has no outgoing edge", g.name, current)
}
