// Package memory provides long-term memory stores for agents, separate from
// the per-session event history.
//
// InMemoryStore is a keyword-matching store suitable for tests and simple
// setups. VectorStore embeds stored snippets and retrieves by cosine
// similarity using an embedded chromem database. CompositeStore partitions
// records by memory type (semantic, episodic, procedural) across dedicated
// backends so each kind can use a different retrieval strategy.
package memory
