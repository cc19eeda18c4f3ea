// Package server implements the HTTP API for the workflow engine
//
// It exposes workflow definitions, runs, pending approvals, and registered
// capabilities over REST, and streams run events to WebSocket subscribers
package server
