// Package config loads and validates the YAML configuration used by the CLI.
// A configuration describes one agent (which reasoning pattern to run and its
// parameters), the model behind it, tool providers, memory backends, engine
// tuning and logging. Values support ${VAR} and ${VAR:-default} environment
// expansion, and a .env file next to the config is loaded automatically.
//
// Library users do not need this package; constructors take functional
// options directly.
package config
