// Package api defines the core data types for the workflow engine
//
// This package contains the shared types used across the engine, including
// workflow definitions, steps, approval gates, step statuses, workflow
// results, run events, capability wire formats, and HTTP messages
package api
