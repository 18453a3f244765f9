package permission

import "strings"

// Denied is the fatal, non-retryable error raised synchronously at a
// host call site when a capability isn't authorized by the calling
// frame (spec.md section 4.3). It aborts the calling component; the
// guest observes it as a structured, catchable error (spec.md
// section 4.5).
type Denied struct {
	Capability Capability
	FrameChain []string
}

func (e *Denied) Error() string {
	return "permission denied for " + string(e.Capability.Kind) +
		" capability at frame chain [" + strings.Join(e.FrameChain, " > ") + "]"
}
