package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/osok/agent-patterns/artifact"
	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/logging"
	"github.com/osok/agent-patterns/memory"
	"github.com/osok/agent-patterns/session"
)

// Config holds the operational tuning knobs of an Engine.
type Config struct {
	// MaxConcurrentRuns bounds how many runs execute simultaneously.
	// 0 means unlimited.
	MaxConcurrentRuns int

	// EventBufferSize is the buffer of the per-run event channels. Larger
	// buffers reduce blocking between the agent and a slow consumer.
	EventBufferSize int

	// MaxModelCalls caps model invocations per run. 0 means unlimited.
	MaxModelCalls int

	// MaxTransfers caps agent-to-agent handoffs within a single run so a
	// cycle of transfer tools cannot loop forever.
	MaxTransfers int
}

// DefaultConfig provides conservative defaults suitable for development
// and moderate production workloads.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	EventBufferSize:   100,
	MaxModelCalls:     50,
	MaxTransfers:      5,
}

// Options configures an Engine. All stores default to in-memory
// implementations so a zero-configuration engine works out of the box.
type Options struct {
	Config        Config
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	Logger        logging.Logger
	Callbacks     []Callback
}

// WithConfig overrides the default engine configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithSessionStore sets the session persistence backend.
func WithSessionStore(s core.SessionStore) func(o *Options) {
	return func(o *Options) { o.SessionStore = s }
}

// WithArtifactStore sets the artifact storage backend.
func WithArtifactStore(s core.ArtifactStore) func(o *Options) {
	return func(o *Options) { o.ArtifactStore = s }
}

// WithMemoryStore sets the searchable memory backend.
func WithMemoryStore(s core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.MemoryStore = s }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCallbacks registers lifecycle callbacks at construction time.
func WithCallbacks(cbs ...Callback) func(o *Options) {
	return func(o *Options) { o.Callbacks = append(o.Callbacks, cbs...) }
}

// Engine coordinates agent execution. It keeps a thread-safe registry of
// named agents, spawns two goroutines per run (one executing the agent,
// one driving the event pipeline) and tracks cancellation functions so
// in-flight runs can be aborted by ID.
type Engine struct {
	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger
	callbacks     *CallbackManager

	config Config

	agents map[string]core.Agent
	mu     sync.RWMutex

	activeRuns map[string]context.CancelFunc
	runsMu     sync.Mutex

	sem chan struct{}
}

var _ core.Engine = (*Engine)(nil)

// New creates an Engine. Without options it uses in-memory stores, a
// no-op logger and DefaultConfig.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cbs := NewCallbackManager()
	for _, cb := range opts.Callbacks {
		cbs.Register(cb)
	}

	e := &Engine{
		sessionStore:  opts.SessionStore,
		artifactStore: opts.ArtifactStore,
		memoryStore:   opts.MemoryStore,
		logger:        opts.Logger,
		callbacks:     cbs,
		config:        opts.Config,
		agents:        make(map[string]core.Agent),
		activeRuns:    make(map[string]context.CancelFunc),
	}

	if opts.Config.MaxConcurrentRuns > 0 {
		e.sem = make(chan struct{}, opts.Config.MaxConcurrentRuns)
	}

	return e
}

// Register makes an agent available for runs under agent.Name(). A
// previously registered agent with the same name is replaced.
func (e *Engine) Register(a core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[a.Name()] = a
}

// GetAgent returns a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[name]
	return a, ok
}

// Callbacks exposes the callback manager for registrations after
// construction. Register callbacks before starting runs.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Run starts an asynchronous agent run.
//
// The user content is appended to the session before the agent starts, so
// the agent always sees its own input in history. Events are streamed on
// the returned channel as the pipeline processes them; a terminal error,
// if any, arrives on the buffered error channel. Both channels are closed
// when the run finishes or the context is cancelled.
func (e *Engine) Run(
	ctx context.Context,
	sessionID, agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	agent, ok := e.GetAgent(agentName)
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not found", agentName)
	}

	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("get session: %w", err)
	}

	runID := core.NewID()

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, e.config.EventBufferSize)
	resumeCh := make(chan struct{}, 1)
	transferCh := make(chan string, 1)

	runCtx2, cancel := context.WithCancel(ctx)

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()

	runCtx := core.NewRunContext(
		runCtx2,
		sessionID,
		runID,
		core.AgentInfo{Name: agent.Name(), Type: "agent"},
		userContent,
		e.config.MaxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		e.sessionStore,
		e.artifactStore,
		e.memoryStore,
		e.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := e.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		cancel()
		e.clearRun(runID)
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}

	go e.runChain(runCtx, agent, agentEmit, transferCh, errorsCh)

	go func() {
		defer close(eventsCh)
		defer close(errorsCh)
		e.processEvents(runCtx, cancel, agentEmit, resumeCh, transferCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync executes an agent to completion and returns all emitted events.
func (e *Engine) RunSync(
	ctx context.Context,
	sessionID, agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := e.Run(ctx, sessionID, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return runID, events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil
				}
			}
			events = append(events, ev)

		case err := <-errorsCh:
			if err != nil {
				return runID, events, err
			}
		}
	}
}

// Cancel aborts an in-flight run. Unknown or already finished run IDs are
// ignored.
func (e *Engine) Cancel(runID string) {
	e.runsMu.Lock()
	cancel, ok := e.activeRuns[runID]
	e.runsMu.Unlock()

	if ok {
		cancel()
	}
}

// GetSession returns a point-in-time snapshot of a session.
func (e *Engine) GetSession(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

func (e *Engine) clearRun(runID string) {
	e.runsMu.Lock()
	delete(e.activeRuns, runID)
	e.runsMu.Unlock()
}

// runChain executes the starting agent and any transfer handoffs it
// produces, sequentially on the same run. It owns agentEmit and closes it
// when the chain finishes so the pipeline goroutine can drain and exit.
func (e *Engine) runChain(
	runCtx *core.RunContext,
	start core.Agent,
	agentEmit chan core.Event,
	transferCh <-chan string,
	errorsCh chan<- error,
) {
	defer close(agentEmit)
	defer e.clearRun(runCtx.RunID)

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
			defer func() { <-e.sem }()
		case <-runCtx.Done():
			return
		}
	}

	fail := func(err error) {
		select {
		case errorsCh <- err:
		default:
		}
	}

	current := start
	for hop := 0; ; hop++ {
		if err := e.executeAgent(runCtx, current); err != nil {
			fail(fmt.Errorf("agent execution failed: %w", err))
			return
		}

		select {
		case target := <-transferCh:
			if e.config.MaxTransfers > 0 && hop+1 > e.config.MaxTransfers {
				fail(fmt.Errorf("transfer limit %d exceeded for run %s", e.config.MaxTransfers, runCtx.RunID))
				return
			}

			next, ok := e.resolveAgent(current, target)
			if !ok {
				fail(fmt.Errorf("transfer target %s not found", target))
				return
			}

			e.logger.Debug("engine.transfer", "run", runCtx.RunID, "from", current.Name(), "to", next.Name())
			runCtx.Agent = core.AgentInfo{Name: next.Name(), Type: "agent"}
			current = next
		default:
			return
		}
	}
}

// resolveAgent looks a transfer target up in the registry first, then in
// the current agent's own hierarchy.
func (e *Engine) resolveAgent(current core.Agent, target string) (core.Agent, bool) {
	if a, ok := e.GetAgent(target); ok {
		return a, true
	}

	if a := current.FindAgent(target); a != nil {
		return a, true
	}

	return nil, false
}

// executeAgent runs one agent through its lifecycle with callbacks around
// it. A before-agent callback error aborts the run before Start.
func (e *Engine) executeAgent(runCtx *core.RunContext, agent core.Agent) error {
	cbCtx := &CallbackContext{
		RunContext: runCtx,
		AgentName:  agent.Name(),
	}

	if err := e.callbacks.Execute(runCtx.Context, CallbackBeforeAgent, cbCtx); err != nil {
		return fmt.Errorf("before-agent callback: %w", err)
	}

	if err := agent.Start(runCtx); err != nil {
		return err
	}
	defer func() {
		if err := agent.Stop(runCtx); err != nil {
			e.logger.Warn("engine.agent.stop", "agent", agent.Name(), "error", err)
		}
	}()

	if err := agent.Run(runCtx); err != nil {
		ecbCtx := &CallbackContext{RunContext: runCtx, AgentName: agent.Name(), Metadata: map[string]any{"error": err}}
		if cbErr := e.callbacks.Execute(runCtx.Context, CallbackOnError, ecbCtx); cbErr != nil {
			e.logger.Warn("engine.callback.on_error", "agent", agent.Name(), "error", cbErr)
		}
		return err
	}

	return e.callbacks.Execute(runCtx.Context, CallbackAfterAgent, cbCtx)
}

// processEvents drives the per-event pipeline: state-change callbacks,
// action application, persistence of non-partial events, forwarding to
// the caller and the resume signal that unblocks the agent. On a pipeline
// error it cancels the run and drains remaining events so runChain can
// finish its sends before the channels close.
func (e *Engine) processEvents(
	runCtx *core.RunContext,
	cancel context.CancelFunc,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	transferCh chan string,
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	sessionID := runCtx.SessionID

	fail := func(err error) {
		select {
		case errorsCh <- err:
		default:
		}
		cancel()
		for range agentEmit {
		}
	}

	for ev := range agentEmit {
		select {
		case <-runCtx.Done():
			for range agentEmit {
			}
			return
		default:
		}

		if len(ev.Actions.StateDelta) > 0 {
			cbCtx := &CallbackContext{RunContext: runCtx, Event: &ev, AgentName: ev.Author}
			if err := e.callbacks.Execute(runCtx.Context, CallbackOnStateChange, cbCtx); err != nil {
				fail(fmt.Errorf("state-change callback: %w", err))
				return
			}
		}

		if err := e.applyEventActions(sessionID, ev, transferCh); err != nil {
			fail(fmt.Errorf("apply event actions: %w", err))
			return
		}

		if !ev.IsPartial() {
			if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
				fail(fmt.Errorf("append event: %w", err))
				return
			}
		}

		select {
		case <-runCtx.Done():
			for range agentEmit {
			}
			return
		case eventsCh <- ev:
			e.logger.Debug("engine.event.delivered", "event", ev.ID, "session", sessionID, "author", ev.Author)
		}

		if !ev.IsPartial() {
			select {
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}
}

// applyEventActions commits the side effects an event carries before it
// becomes visible to the caller.
func (e *Engine) applyEventActions(sessionID string, ev core.Event, transferCh chan string) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := e.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("apply state delta: %w", err)
		}
	}

	if target := ev.Actions.TransferToAgent; target != nil && *target != "" {
		// Only the latest requested target survives; runChain consumes it
		// after the current agent returns.
		select {
		case <-transferCh:
		default:
		}
		transferCh <- *target
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		e.logger.Debug("engine.event.escalate", "session", sessionID, "author", ev.Author)
	}

	return nil
}
