package api

import (
	"fmt"
	"strings"
)

// Reference is a parsed `$root.path.to.value` expression. Root is either
// InputKey or the ID of a prior step
type Reference struct {
	Root string
	Path []string
}

const (
	// ReferencePrefix marks a string value as a reference
	ReferencePrefix = "$"

	// InputKey is the context key holding the run inputs
	InputKey = "input"
)

// IsReference returns whether a value is a string carrying the reference
// prefix
func IsReference(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, ReferencePrefix)
}

// ParseReference splits a reference string into its root and path segments.
// Segments must be non-empty and contain only letters, digits, underscores,
// or hyphens
func ParseReference(ref string) (Reference, error) {
	body, ok := strings.CutPrefix(ref, ReferencePrefix)
	if !ok {
		return Reference{}, fmt.Errorf("%w: %q lacks %q prefix",
			ErrInvalidReference, ref, ReferencePrefix)
	}
	parts := strings.Split(body, ".")
	for _, p := range parts {
		if !IsReferenceSegment(p) {
			return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
	}
	return Reference{Root: parts[0], Path: parts[1:]}, nil
}

// IsReferenceSegment reports whether s is a valid reference path segment
func IsReferenceSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsReferenceChar(r) {
			return false
		}
	}
	return true
}

// IsReferenceChar reports whether r may appear in a reference segment
func IsReferenceChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	default:
		return r == '_' || r == '-'
	}
}

// String renders the reference back into its `$a.b.c` form
func (r Reference) String() string {
	if len(r.Path) == 0 {
		return ReferencePrefix + r.Root
	}
	return ReferencePrefix + r.Root + "." + strings.Join(r.Path, ".")
}
