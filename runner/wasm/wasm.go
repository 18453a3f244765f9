// Package wasm implements the WASM Runner slot of spec.md section
// 4.5. No WASM runtime (Wasmtime, wazero, ...) appears anywhere in
// this module's dependency graph, so this package does not embed
// one: it defines the Module contract a concrete engine would
// satisfy and an injectable Runner that dispatches to it. This keeps
// the Invoke contract, timeout/cancellation wiring, and host-call
// plumbing real and exercised while leaving the actual guest sandbox
// as a pluggable dependency, per spec.md's explicit Non-goal "the
// concrete WASM embedding... are Runner implementations satisfying
// the contract of section 4.5."
package wasm

import (
	"context"
	"encoding/json"

	"github.com/slipwayhq/slipway/runner"
)

// Module is the minimal surface a concrete WASM embedding must
// expose: compile a component's module bytes once, then run it
// against canonical input under a bounded heap and a host import
// object satisfying the ABI of spec.md section 6.
type Module interface {
	// Compile parses and instantiates wasmBytes, returning an
	// opaque handle reused across invocations of the same
	// Component Definition.
	Compile(ctx context.Context, wasmBytes []byte) (CompiledModule, error)
}

// CompiledModule is one compiled WASM component, ready to run.
type CompiledModule interface {
	// Run invokes the guest's exported run(input) function with
	// host wired as the ABI's slipway_host import, honoring ctx's
	// deadline and cancellation.
	Run(ctx context.Context, input json.RawMessage, host runner.Host) (json.RawMessage, error)
	Close() error
}

// Runner dispatches component.RunnerWasm Definitions to an injected
// Module implementation. A Runner with a nil Module always fails
// with RunnerError::Internal, which is the correct behaviour for a
// build that hasn't wired a concrete WASM embedding.
type Runner struct {
	Module Module

	// MaxHeapBytes records the guest memory limit (default 256 MiB).
	// Invoke does not pass it to the Module, and neither Module nor
	// CompiledModule takes a memory limit, so this field does not
	// bound guest memory by itself.
	MaxHeapBytes int64
}

const DefaultMaxHeapBytes = 256 * 1024 * 1024

func New(module Module) *Runner {
	return &Runner{Module: module, MaxHeapBytes: DefaultMaxHeapBytes}
}

func (r *Runner) Invoke(ctx context.Context, inv runner.Invocation) (json.RawMessage, *runner.Error) {
	if r.Module == nil {
		return nil, runner.Internal("no WASM runtime configured")
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = runner.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	compiled, err := r.Module.Compile(runCtx, inv.Definition.WasmModule)
	if err != nil {
		return nil, runner.Internal("compiling wasm module: " + err.Error())
	}
	defer compiled.Close()

	out, runErr := compiled.Run(runCtx, inv.Input, inv.Host)
	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, runner.Timeout()
		}
		return nil, runner.Panic(runErr.Error())
	}
	return out, nil
}
