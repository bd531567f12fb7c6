// Package engine orchestrates agent runs: it owns the agent registry,
// starts per-run goroutines, drives the event pipeline (apply actions,
// persist, forward, resume) and resolves transfer handoffs between
// registered agents.
//
// A run is started with Run (streaming) or RunSync (collected). For every
// event an agent emits the engine applies the event's actions to the
// backing stores, appends non-partial events to the session history,
// forwards the event to the caller and only then signals the agent to
// resume. Agents can therefore rely on their events being durable before
// they continue.
package engine
