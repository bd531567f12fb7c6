// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, engine, patterns) from depending on
// concrete storage.
//
// Two backends are provided: a volatile in-memory store for tests and demos,
// and a JSON file store that survives process restarts. Additional backends
// (Redis, Postgres, etc.) can be added without changing any calling code.
package session
