// Package runner defines the Runner contract of spec.md section 4.5
// and dispatches a Component Definition to the Runner implementation
// matching its runner kind.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/permission"
)

// ErrorKind tags the RunnerError taxonomy of spec.md section 4.5.
type ErrorKind string

const (
	KindTimeout          ErrorKind = "timeout"
	KindPanic            ErrorKind = "panic"
	KindSchemaMismatch   ErrorKind = "schema_mismatch"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindHost             ErrorKind = "host"
	KindInternal         ErrorKind = "internal"
)

// SchemaSide names which side of a component's contract a
// SchemaMismatch error refers to.
type SchemaSide string

const (
	SchemaInput  SchemaSide = "input"
	SchemaOutput SchemaSide = "output"
)

// Error is the tagged RunnerError variant of spec.md section 4.5.
type Error struct {
	Kind ErrorKind

	// Trace carries the guest stack trace for a Panic.
	Trace string
	// Which and Detail describe a SchemaMismatch.
	Which  SchemaSide
	Detail string
	// Capability describes the denied capability for a
	// PermissionDenied error.
	Capability string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "runner: timeout"
	case KindPanic:
		return fmt.Sprintf("runner: panic: %s", e.Trace)
	case KindSchemaMismatch:
		return fmt.Sprintf("runner: schema mismatch (%s): %s", e.Which, e.Detail)
	case KindPermissionDenied:
		return fmt.Sprintf("runner: permission denied: %s", e.Capability)
	case KindHost:
		return fmt.Sprintf("runner: host error: %s", e.Detail)
	default:
		return fmt.Sprintf("runner: internal error: %s", e.Detail)
	}
}

func Timeout() *Error { return &Error{Kind: KindTimeout} }
func Panic(trace string) *Error { return &Error{Kind: KindPanic, Trace: trace} }
func SchemaMismatch(which SchemaSide, detail string) *Error {
	return &Error{Kind: KindSchemaMismatch, Which: which, Detail: detail}
}
func PermissionDenied(capability string) *Error {
	return &Error{Kind: KindPermissionDenied, Capability: capability}
}
func HostError(detail string) *Error { return &Error{Kind: KindHost, Detail: detail} }
func Internal(detail string) *Error { return &Error{Kind: KindInternal, Detail: detail} }

// Host is the capability surface a running Component may invoke,
// gated by frame permission checks (spec.md section 4.5's host
// capability table). Implementations live in package host.
type Host interface {
	LogTrace(msg string)
	LogDebug(msg string)
	LogInfo(msg string)
	LogWarn(msg string)
	LogError(msg string)

	FetchText(ctx context.Context, url string, opts json.RawMessage) (json.RawMessage, error)
	FetchBin(ctx context.Context, url string, opts json.RawMessage) (json.RawMessage, error)

	Run(ctx context.Context, handle string, input json.RawMessage) (json.RawMessage, error)

	LoadText(handle, path string) (string, error)
	LoadBin(handle, path string) ([]byte, error)

	Env(key string) (string, bool)
	Font(stack string) (json.RawMessage, bool)

	EncodeBin(data []byte) string
	DecodeBin(s string) ([]byte, error)
}

// Invocation bundles everything a Runner needs to execute one
// Component once: the Definition (code + schemas), the canonical
// input already validated against the input schema, the effective
// permission Frame, and the Host the guest may call back into.
type Invocation struct {
	Definition *component.Definition
	Input      json.RawMessage
	Frame      *permission.Frame
	Host       Host
	Timeout    time.Duration
}

// DefaultTimeout is the wall-clock budget of spec.md section 4.5 for
// a node with no component-specific override.
const DefaultTimeout = 30 * time.Second

// Runner executes one Component invocation in isolation. Invoke must
// not mutate inv.Frame or observe another invocation's in-flight
// state; all externally visible effects go through inv.Host.
type Runner interface {
	Invoke(ctx context.Context, inv Invocation) (json.RawMessage, *Error)
}
