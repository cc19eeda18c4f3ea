// Package builder provides fluent construction of workflow definitions and a
// client for the workflow engine's HTTP API
//
// Builders are immutable: every With method returns a modified copy, so a
// partially configured builder can be shared and extended safely. The package
// also offers a handler for serving capabilities over HTTP in the wire format
// expected by the engine's HTTP capability adapter
package builder
