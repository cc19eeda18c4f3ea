package api

import "maps"

type (
	// Args represents a map of named arguments passed to or from steps
	Args map[Name]any

	// Name is a string identifier for arguments and output keys
	Name string
)

// Set creates a new Args with the specified name-value pair added
func (a Args) Set(name Name, value any) Args {
	if a == nil {
		return Args{name: value}
	}
	res := maps.Clone(a)
	res[name] = value
	return res
}

// Merge returns a new Args containing a overlaid with other. Keys present in
// other take precedence
func (a Args) Merge(other Args) Args {
	res := make(Args, len(a)+len(other))
	maps.Copy(res, a)
	maps.Copy(res, other)
	return res
}

// Clone performs a deep copy of the Args, including nested maps and slices
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	res := make(Args, len(a))
	for k, v := range a {
		res[k] = CloneValue(v)
	}
	return res
}

// GetString retrieves a string value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetString(name Name, defaultValue string) string {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

// GetBool retrieves a boolean value from args, returning defaultValue if not
// found or wrong type
func (a Args) GetBool(name Name, defaultValue bool) bool {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	b, ok := val.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetInt retrieves an integer value from args, returning defaultValue if not
// found or wrong type. Supports both int and float64 (converting from JSON
// numbers)
func (a Args) GetInt(name Name, defaultValue int) int {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	if i, ok := val.(int); ok {
		return i
	}
	if f, ok := val.(float64); ok {
		return int(f)
	}
	return defaultValue
}

// GetFloat retrieves a numeric value from args as a float64, returning
// defaultValue if not found or not numeric
func (a Args) GetFloat(name Name, defaultValue float64) float64 {
	val, ok := a[name]
	if !ok {
		return defaultValue
	}
	if f, ok := ToFloat(val); ok {
		return f
	}
	return defaultValue
}

// ToMap converts Args into a plain string-keyed map
func (a Args) ToMap() map[string]any {
	res := make(map[string]any, len(a))
	for k, v := range a {
		res[string(k)] = v
	}
	return res
}

// ArgsFromMap converts a plain string-keyed map into Args
func ArgsFromMap(m map[string]any) Args {
	res := make(Args, len(m))
	for k, v := range m {
		res[Name(k)] = v
	}
	return res
}

// CloneValue deep-copies maps and slices commonly found in decoded JSON or
// YAML documents. Other values are returned as-is
func CloneValue(value any) any {
	switch v := value.(type) {
	case Args:
		return v.Clone()
	case map[Name]any:
		return Args(v).Clone()
	case map[string]any:
		res := make(map[string]any, len(v))
		for k, elem := range v {
			res[k] = CloneValue(elem)
		}
		return res
	case []any:
		res := make([]any, len(v))
		for i, elem := range v {
			res[i] = CloneValue(elem)
		}
		return res
	default:
		return value
	}
}

// ToFloat converts any Go numeric value into a float64
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
