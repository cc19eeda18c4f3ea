package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/kode4food/cadence/pkg/api"
)

func scriptCacheKey(script string, argNames []string) string {
	hash := sha256.Sum256([]byte(script))
	scriptHash := hex.EncodeToString(hash[:8])
	return fmt.Sprintf("%s:%s", strings.Join(argNames, ","), scriptHash)
}

// sortedArgNames validates and orders the argument names a script binds
func sortedArgNames(names []api.Name) ([]string, error) {
	res := make([]string, 0, len(names))
	for _, n := range names {
		if !isIdentifier(string(n)) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgName, n)
		}
		res = append(res, string(n))
	}
	slices.Sort(res)
	return slices.Compact(res), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func scriptArgs(inputs api.Args, names []string) []any {
	res := make([]any, len(names))
	for i, name := range names {
		res[i] = inputs[api.Name(name)]
	}
	return res
}
