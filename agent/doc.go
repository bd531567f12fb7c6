// Package agent contains the first-class agent implementations:
//
//  1. Base lifecycle and hierarchy plumbing (BaseAgent)
//  2. Coordination patterns (SequentialAgent, ParallelAgent, LoopAgent)
//  3. The model-backed conversational and tool-calling agent (ModelAgent)
//
// Agents receive a *core.RunContext (shared or cloned) and emit events into
// it. Composite agents coordinate child Runs; ModelAgent integrates the
// model, tool and flow packages to stream events. Persistence and model
// specifics stay in their own packages to avoid cyclic dependencies.
package agent
