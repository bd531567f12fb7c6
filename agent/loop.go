package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/osok/agent-patterns/core"
)

// ErrEscalated is returned internally when a child agent signals escalation.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent executes a child agent repeatedly with configurable termination
// controls: maximum iterations, an output predicate, an interval between
// iterations and escalation monitoring. The same run context is shared
// across iterations so state accumulates.
type LoopAgent struct {
	BaseAgent
	child       core.Agent
	maxIters    int
	interval    time.Duration
	stopOnError bool
	predicate   func(string) bool
}

// LoopOption configures a LoopAgent.
type LoopOption func(*LoopAgent)

// WithMaxIters sets the maximum number of iterations.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval sets the delay between iterations.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithPredicate sets a termination condition evaluated against the text of
// the child's final response each iteration. Returning true stops the loop.
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// WithContinueOnError keeps the loop running when an iteration fails.
func WithContinueOnError() LoopOption {
	return func(l *LoopAgent) { l.stopOnError = false }
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Defaults: 100 iterations, no interval, stop on first error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		maxIters:    100,
		stopOnError: true,
	}
	for _, o := range opts {
		o(la)
	}
	return la
}

// Run implements core.Agent, executing the child until the iteration budget
// is spent, the predicate matches, the child escalates or the context is
// cancelled. Escalation is early termination, not an error.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	for i := 0; i < l.maxIters; i++ {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}

		runCtx.LogDebug("loop.iteration.start", "agent", l.Name(), "iteration", i+1)

		lastText, childErr := l.runChildMonitored(runCtx)

		if errors.Is(childErr, ErrEscalated) {
			runCtx.LogInfo("loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil
		}
		if childErr != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, l.child.Name(), childErr)
			}
			runCtx.LogWarn("loop.iteration.error", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
		}

		if l.predicate != nil && l.predicate(lastText) {
			runCtx.LogInfo("loop.predicate.matched", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	runCtx.LogDebug("loop.complete", "agent", l.Name(), "iterations", l.maxIters)
	return nil
}

// runChildMonitored executes the child while intercepting emitted events to
// detect escalation flags and capture the final response text before
// forwarding events to the parent context.
func (l *LoopAgent) runChildMonitored(runCtx *core.RunContext) (string, error) {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childCtx := runCtx.NewChildContext(interceptChan, resumeChan, runCtx.Branch)

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- l.child.Run(childCtx)
	}()

	lastText := ""
	for {
		select {
		case event, ok := <-interceptChan:
			if !ok {
				return lastText, <-done
			}

			if text := event.Text(); text != "" && !event.IsPartial() {
				lastText = text
			}

			if event.Actions.Escalate != nil && *event.Actions.Escalate {
				if err := runCtx.EmitEvent(event); err != nil {
					return lastText, err
				}
				if err := l.unwindChild(runCtx, interceptChan, resumeChan, done); err != nil {
					return lastText, err
				}
				return lastText, ErrEscalated
			}

			if err := runCtx.EmitEvent(event); err != nil {
				return lastText, err
			}

			select {
			case resumeChan <- struct{}{}:
			case <-runCtx.Done():
				return lastText, runCtx.Err()
			}

		case err := <-done:
			// Forward events the child emitted just before returning.
			for {
				select {
				case event, ok := <-interceptChan:
					if !ok {
						return lastText, err
					}
					if text := event.Text(); text != "" && !event.IsPartial() {
						lastText = text
					}
					if event.Actions.Escalate != nil && *event.Actions.Escalate {
						if emitErr := runCtx.EmitEvent(event); emitErr != nil {
							return lastText, emitErr
						}
						return lastText, ErrEscalated
					}
					if emitErr := runCtx.EmitEvent(event); emitErr != nil {
						return lastText, emitErr
					}
				default:
					return lastText, err
				}
			}

		case <-runCtx.Done():
			return lastText, runCtx.Err()
		}
	}
}

// unwindChild lets an escalating child run to completion. The child may be
// blocked in WaitForResume after its escalation emit, so resume signals keep
// flowing while any remaining events are forwarded, until Run returns.
func (l *LoopAgent) unwindChild(
	runCtx *core.RunContext,
	interceptChan <-chan core.Event,
	resumeChan chan<- struct{},
	done <-chan error,
) error {
	for {
		select {
		case resumeChan <- struct{}{}:
		default:
		}

		select {
		case event := <-interceptChan:
			if err := runCtx.EmitEvent(event); err != nil {
				return err
			}
		case <-done:
			// Forward events the child emitted just before returning.
			for {
				select {
				case event := <-interceptChan:
					if err := runCtx.EmitEvent(event); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}
}

// CreateEscalationEvent constructs an escalation signal event for agents
// that cannot complete their task and need a parent to take over.
func CreateEscalationEvent(runID, author string, content *core.Content) core.Event {
	escalate := true
	ev := core.NewEvent(runID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content
	return ev
}
