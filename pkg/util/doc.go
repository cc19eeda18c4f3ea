// Package util provides common utility functions and data structures
//
// This package includes the generic set used by the state transition
// tables and a bounded LRU cache for compiled conditions and scripts
package util
