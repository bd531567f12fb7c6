package graph

import "maps"

// State is the mutable data bag threaded through a graph run. Nodes receive a
// copy and return the (possibly modified) copy, so a node can never corrupt
// the state seen by an earlier step's trace snapshot.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	c := make(State, len(s))
	maps.Copy(c, s)
	return c
}

// GetString returns the string value for key, or "" when absent or not a string.
func (s State) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// GetInt returns the int value for key, converting float64 values produced by
// JSON decoding. Returns 0 when absent or not numeric.
func (s State) GetInt(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// GetBool returns the bool value for key, or false when absent or not a bool.
func (s State) GetBool(key string) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return false
}

// GetSlice returns the []any value for key, or nil when absent.
func (s State) GetSlice(key string) []any {
	if v, ok := s[key].([]any); ok {
		return v
	}
	return nil
}

// GetStringSlice returns the value for key as a []string, accepting both
// []string and []any of strings. Returns nil otherwise.
func (s State) GetStringSlice(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, str)
		}
		return out
	}
	return nil
}

// Merge copies all pairs from other into s and returns s.
func (s State) Merge(other State) State {
	maps.Copy(s, other)
	return s
}
