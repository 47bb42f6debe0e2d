// Package config provides centralized configuration management for the
// SplitChain runtime: the HTTP listen address, completion-capability provider
// settings, chain endpoints, the party roster, and logging behaviour. Secrets
// such as API keys and wallet private keys are referenced by environment
// variable name only and resolved once during startup wiring.
package config
