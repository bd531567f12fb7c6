package engine

import (
	"context"
	"fmt"

	"github.com/osok/agent-patterns/core"
	"github.com/osok/agent-patterns/logging"
)

// CallbackType identifies a lifecycle point where callbacks fire.
type CallbackType string

const (
	// CallbackBeforeAgent fires before an agent starts executing.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent fires after an agent completes successfully.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackOnError fires when agent execution returns an error.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnStateChange fires before a state delta is applied to the
	// session. A returned error rejects the change and aborts the run.
	CallbackOnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the information available at a lifecycle point.
type CallbackContext struct {
	// RunContext is the execution scope of the run the callback fires in.
	RunContext *core.RunContext

	// Event is the event being processed, nil for agent-level callbacks.
	Event *core.Event

	// AgentName identifies the agent associated with the callback.
	AgentName string

	// Metadata holds extra values such as the triggering error.
	Metadata map[string]any
}

// Callback is a synchronous hook into the engine's run lifecycle.
// Returning an error aborts the associated operation.
type Callback interface {
	// Type returns the lifecycle point this callback handles.
	Type() CallbackType

	// Execute runs the hook. Implementations should be fast since they
	// block the run pipeline.
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a plain function to the Callback interface.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback wraps fn as a callback for the given lifecycle point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the lifecycle point this callback handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager routes lifecycle events to registered callbacks.
// Registration is not synchronized; register everything before starting
// runs. Execution is safe for concurrent use once registration is done.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback under its declared type. Callbacks of the same
// type run in registration order.
func (cm *CallbackManager) Register(cb Callback) {
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// Execute runs all callbacks of the given type in order. The first error
// stops execution and is returned.
func (cm *CallbackManager) Execute(
	ctx context.Context,
	callbackType CallbackType,
	cbCtx *CallbackContext,
) error {
	for _, cb := range cm.callbacks[callbackType] {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback logs lifecycle events through a logging.Logger.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a callback that logs the given lifecycle
// point at debug level.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type returns the lifecycle point this callback handles.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the lifecycle event with agent and event context.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	eventID := ""
	if cbCtx.Event != nil {
		eventID = cbCtx.Event.ID
	}
	c.logger.Debug("engine.callback", "type", string(c.callbackType), "agent", cbCtx.AgentName, "event", eventID)
	return nil
}

// StateValidationCallback validates state deltas before they are applied.
// The validator receives only the changed keys; returning an error rejects
// the change and aborts the run.
type StateValidationCallback struct {
	validator func(stateDelta map[string]any) error
}

// NewStateValidationCallback creates a state-change validator callback.
func NewStateValidationCallback(validator func(stateDelta map[string]any) error) *StateValidationCallback {
	return &StateValidationCallback{validator: validator}
}

// Type returns CallbackOnStateChange.
func (c *StateValidationCallback) Type() CallbackType { return CallbackOnStateChange }

// Execute validates the event's state delta, if any.
func (c *StateValidationCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.validator == nil || cbCtx.Event == nil || cbCtx.Event.Actions.StateDelta == nil {
		return nil
	}
	if err := c.validator(cbCtx.Event.Actions.StateDelta); err != nil {
		return fmt.Errorf("state validation: %w", err)
	}
	return nil
}
