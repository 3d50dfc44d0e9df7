// Package chain houses blockchain connectivity utilities: the RPC client
// abstraction the operation layer is written against, YAML chain endpoint
// definitions, and explorer link helpers. The concrete EVM implementation
// lives in the ethereum subpackage; provider wires configured endpoints
// into ready-to-use clients.
package chain
