// Package capability provides the registry through which workflow steps reach
// their units of work
//
// A Capability is resolved by name and invoked with a step's resolved
// arguments. Adapters are provided for plain Go functions, HTTP endpoints,
// sandboxed Lua scripts, and Ale lambdas, along with a loader for declaring
// capabilities in YAML or JSON files
package capability
