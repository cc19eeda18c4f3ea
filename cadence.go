// Package cadence is a sequential workflow orchestration engine
//
// Workflows are ordered lists of steps. Each step may invoke a named
// capability, read prior step outputs through references, run only when its
// condition holds, and wait on an approval gate before it executes
package cadence

const (
	// Name is the service name reported in logs and health responses
	Name = "cadence"

	// Version is the service version reported in logs and health responses
	Version = "0.1.0"
)
