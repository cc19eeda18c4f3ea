// Package engine implements the sequential workflow execution engine
//
// This package contains the control loop that walks a workflow definition,
// along with the reference resolver, the restricted condition evaluator,
// and the approval decision functions it relies on
package engine
