// Package artifact provides storage backends for binary artifacts produced
// during runs, such as generated files, reports or intermediate outputs.
// Artifacts are scoped by session and addressed by a caller-chosen ID.
//
// InMemoryStore keeps everything in process memory and is intended for tests
// and short-lived runs. FileStore writes artifacts to a directory tree and
// survives restarts.
package artifact
