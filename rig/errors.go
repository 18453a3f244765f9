package rig

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every issue found while validating a
// Rig document (spec.md section 4.2): validation aborts before any
// node runs, and every detected issue is reported together rather
// than one at a time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "rig: validation failed:\n  " + strings.Join(e.Issues, "\n  ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Issues = append(e.Issues, fmt.Sprintf(format, args...))
}

func (e *ValidationError) errOrNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}
