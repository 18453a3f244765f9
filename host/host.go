// Package host implements the Host Interface of spec.md section 4.5:
// the capability set a running Component may invoke, each call
// gated by the executing node's permission Frame.
package host

import (
	"context"
	"net/http"
	"sync"

	"github.com/slipwayhq/slipway/permission"
)

// FileProvider resolves a declared file handle to bytes under a
// path, honoring the engine's notion of which paths exist under that
// handle (spec.md section 6, "files" permission).
type FileProvider interface {
	Load(handle, path string) ([]byte, error)
}

// FontProvider resolves a font stack declaration to a concrete font
// resource.
type FontProvider interface {
	Resolve(stack string) (interface{}, bool)
}

// EnvProvider exposes host environment values under the env{key}
// permission.
type EnvProvider interface {
	Lookup(key string) (string, bool)
}

// Dispatcher executes a declared callout by handle, invoked via the
// "run" capability. It is satisfied by the top-level engine, which
// recurses into a Callout-derived permission Frame and a fresh
// evaluation for the callout's target component.
type Dispatcher interface {
	Dispatch(ctx context.Context, handle string, input []byte) ([]byte, error)
}

// Host implements runner.Host for one node's (or callout's)
// invocation, gated throughout by Frame.
type Host struct {
	Frame   *permission.Frame
	Client  *http.Client
	Files   FileProvider
	Fonts   FontProvider
	EnvSrc  EnvProvider
	Callout Dispatcher

	mu   sync.Mutex
	logs []LogEntry
}

// LogEntry is one guest-emitted log line, recorded against the
// node's execution trace per spec.md section 4.5's host capability
// table.
type LogEntry struct {
	Level   string
	Message string
}

// New builds a Host for one node execution under frame, using client
// for outbound HTTP (see NewHTTPClient), files/fonts/env providers
// for the engine's static resources, and dispatcher to run callouts.
func New(frame *permission.Frame, client *http.Client, files FileProvider, fonts FontProvider, env EnvProvider, dispatcher Dispatcher) *Host {
	return &Host{
		Frame:   frame,
		Client:  client,
		Files:   files,
		Fonts:   fonts,
		EnvSrc:  env,
		Callout: dispatcher,
	}
}

// Logs returns the entries recorded during this Host's lifetime, in
// emission order.
func (h *Host) Logs() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]LogEntry{}, h.logs...)
}

func (h *Host) record(level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, LogEntry{Level: level, Message: msg})
}

func (h *Host) LogTrace(msg string) { h.record("trace", msg) }
func (h *Host) LogDebug(msg string) { h.record("debug", msg) }
func (h *Host) LogInfo(msg string)  { h.record("info", msg) }
func (h *Host) LogWarn(msg string)  { h.record("warn", msg) }
func (h *Host) LogError(msg string) { h.record("error", msg) }

func (h *Host) authorize(cap permission.Capability) error {
	if h.Frame.Authorize(cap) {
		return nil
	}
	return &permission.Denied{Capability: cap, FrameChain: h.Frame.Chain()}
}
