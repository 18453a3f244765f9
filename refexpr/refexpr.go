// Package refexpr implements the reference language embedded in a
// Rig's node inputs (spec section 4.1): JSON values that are either
// ordinary literals or reference expressions naming rig constants,
// another node's output, or the evaluator-scoped context value.
package refexpr

import (
	"errors"
	"sort"
	"strings"
)

const (
	// ConstPrefix introduces a JSONPath query against the rig's
	// constants object.
	ConstPrefix = "$."

	// NodePrefix introduces a reference to a node's output, either
	// whole ("$$.handle") or via a JSONPath suffix
	// ("$$.handle.path").
	NodePrefix = "$$."

	// ScopedPrefix introduces the reserved evaluator-scoped
	// context value.
	ScopedPrefix = "$$$"
)

// Context carries the data a reference expression can resolve
// against: the rig's constants, the (already-completed) outputs of
// other nodes, and an optional evaluator-scoped value bound to "$$$".
type Context struct {
	Constants interface{}
	Outputs   map[string]interface{}
	Scoped    interface{}
}

// IsReference reports whether v is a whole-string reference
// expression, returning the string if so.
//
// Reference detection is a strict whole-value prefix match: there is
// no in-string interpolation.
func IsReference(v interface{}) (string, bool) {
	s, is := v.(string)
	if !is {
		return "", false
	}
	if s == ScopedPrefix || strings.HasPrefix(s, ScopedPrefix+".") {
		return s, true
	}
	if strings.HasPrefix(s, NodePrefix) {
		return s, true
	}
	if strings.HasPrefix(s, ConstPrefix) {
		return s, true
	}
	return "", false
}

// SplitNodeReference splits "$$.handle" or "$$.handle.path" into the
// referenced node handle and the (possibly empty) JSONPath suffix.
func SplitNodeReference(s string) (handle, path string, err error) {
	if !strings.HasPrefix(s, NodePrefix) {
		return "", "", errors.New("refexpr: not a node reference: " + s)
	}
	rest := s[len(NodePrefix):]
	if rest == "" {
		return "", "", errors.New("refexpr: empty node reference")
	}
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		return rest[:idx], rest[idx+1:], nil
	}
	return rest, "", nil
}

// IsSelfReference reports whether a dependency extracted from
// nodeHandle's own input names nodeHandle itself, which spec.md 4.1
// calls out as a validation error.
func IsSelfReference(nodeHandle, dependencyHandle string) bool {
	return nodeHandle != "" && nodeHandle == dependencyHandle
}

// ExtractDependencies scans raw (a node's raw input) for "$$.<handle>"
// tokens and returns the set of predecessor node handles it names,
// deduplicated and sorted lexicographically.  This seeds the DAG edges
// (spec.md 4.1).
func ExtractDependencies(raw interface{}) []string {
	seen := map[string]bool{}
	var order []string
	var walk func(x interface{})
	walk = func(x interface{}) {
		switch v := x.(type) {
		case string:
			if s, is := IsReference(v); is && strings.HasPrefix(s, NodePrefix) {
				handle, _, err := SplitNodeReference(s)
				if err == nil && !seen[handle] {
					seen[handle] = true
					order = append(order, handle)
				}
			}
		case map[string]interface{}:
			for _, vv := range v {
				walk(vv)
			}
		case []interface{}:
			for _, vv := range v {
				walk(vv)
			}
		}
	}
	walk(raw)
	sort.Strings(order)
	return order
}

// Resolve recursively expands reference expressions within raw,
// producing the node's resolved input.  A nested reference is
// resolved before the enclosing array/object is frozen, per spec.md
// 4.1.  Absent JSONPath results resolve to nil (distinct from the
// literal string "null").
func Resolve(raw interface{}, rc *Context) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		expr, is := IsReference(v)
		if !is {
			return v, nil
		}
		return resolveExpr(expr, rc)
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(v))
		for k, vv := range v {
			r, err := Resolve(vv, rc)
			if err != nil {
				return nil, err
			}
			acc[k] = r
		}
		return acc, nil
	case []interface{}:
		acc := make([]interface{}, len(v))
		for i, vv := range v {
			r, err := Resolve(vv, rc)
			if err != nil {
				return nil, err
			}
			acc[i] = r
		}
		return acc, nil
	default:
		return v, nil
	}
}

func resolveExpr(expr string, rc *Context) (interface{}, error) {
	switch {
	case expr == ScopedPrefix:
		return rc.Scoped, nil
	case strings.HasPrefix(expr, ScopedPrefix+"."):
		return EvalJSONPath(rc.Scoped, expr[len(ScopedPrefix)+1:])
	case strings.HasPrefix(expr, NodePrefix):
		handle, path, err := SplitNodeReference(expr)
		if err != nil {
			return nil, err
		}
		output, have := rc.Outputs[handle]
		if !have {
			return nil, errors.New("refexpr: no output recorded for node \"" + handle + "\"")
		}
		if path == "" {
			return output, nil
		}
		return EvalJSONPath(output, path)
	case strings.HasPrefix(expr, ConstPrefix):
		return EvalJSONPath(rc.Constants, expr[len(ConstPrefix):])
	default:
		return nil, errors.New("refexpr: unrecognized reference expression: " + expr)
	}
}
