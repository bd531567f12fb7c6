// Package patterns implements reusable reasoning strategies as agents:
// ReAct, Plan-and-Solve, Reflection, Reflexion, REWOO, LLM Compiler, LATS,
// Self-Discovery and STORM.
//
// Every pattern is a core.Agent. Patterns drive the model directly, surface
// their intermediate phases as structured step events through the
// RunContext, and persist their outcome under an output key in session
// state. Multi-phase patterns compose their control flow on the graph
// package; fan-out phases (LLM Compiler task scheduling, STORM research)
// run on errgroup with bounded parallelism.
package patterns
