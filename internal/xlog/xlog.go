// Package xlog is a clumsy switchable logger: a package-level on/off
// switch guarding log.Printf, used by the engine for its own
// operational logging (as distinct from a component's guest-visible
// execution trace, which is recorded by package host).
package xlog

import "log"

// Enabled controls whether Logf actually writes anything.
var Enabled = false

// Logf calls log.Printf if Enabled is true, and is a no-op otherwise.
func Logf(format string, args ...interface{}) {
	if !Enabled {
		return
	}
	log.Printf(format, args...)
}
