// Package dispatch implements the node dispatcher (C5): it maps each
// workflow.NodeKind to the concrete adapter or operator invocation and
// performs the parameter coercion node parameters require.
package dispatch

import (
	"fmt"
	"strconv"

	"github.com/smilemakc/toolflow/pkg/toolflowerr"
)

// paramString extracts a required string parameter.
func paramString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing parameter %q", toolflowerr.ErrBadParameter, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q is not a string", toolflowerr.ErrBadParameter, key)
	}
	return s, nil
}

// optionalString extracts an optional string parameter, defaulting to "".
func optionalString(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// paramU64 accepts a native integer/float (as decoded from JSON) or a
// decimal string, per spec.md §4.5.
func paramU64(params map[string]any, key string) (uint64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", toolflowerr.ErrBadParameter, key)
	}
	switch x := v.(type) {
	case float64:
		if x < 0 {
			return 0, fmt.Errorf("%w: parameter %q is negative", toolflowerr.ErrBadParameter, key)
		}
		return uint64(x), nil
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: parameter %q is negative", toolflowerr.ErrBadParameter, key)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%w: parameter %q is negative", toolflowerr.ErrBadParameter, key)
		}
		return uint64(x), nil
	case string:
		u, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: parameter %q is not a decimal string", toolflowerr.ErrBadParameter, key)
		}
		return u, nil
	default:
		return 0, fmt.Errorf("%w: parameter %q has unsupported type", toolflowerr.ErrBadParameter, key)
	}
}

// paramBool accepts a native boolean or nonzero integer, per spec.md §4.5.
func paramBool(params map[string]any, key string) (bool, error) {
	v, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: missing parameter %q", toolflowerr.ErrBadParameter, key)
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	default:
		return false, fmt.Errorf("%w: parameter %q has unsupported type", toolflowerr.ErrBadParameter, key)
	}
}
