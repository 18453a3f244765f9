// Package engine ties the Reference Language, Rig Model & Validator,
// Permission Resolver, State Store, Scheduler, Runner Dispatch, and
// Host Interface together into the single evaluation entry point of
// spec.md section 7.
package engine

import (
	"net/http"
	"time"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/host"
	"github.com/slipwayhq/slipway/permission"
	"github.com/slipwayhq/slipway/runner"
	"github.com/slipwayhq/slipway/runner/fragment"
	"github.com/slipwayhq/slipway/runner/js"
	"github.com/slipwayhq/slipway/runner/wasm"
	"github.com/slipwayhq/slipway/store"
)

// Config holds the knobs spec.md leaves to the embedding caller:
// scheduler concurrency, per-node timeout, and the serving context's
// root permission grant.
type Config struct {
	MaxConcurrency int
	NodeTimeout    time.Duration
	RootAllow      []permission.Permission
	RootDeny       []permission.Permission
}

// DefaultConfig matches spec.md's stated defaults: concurrency 1 for
// reproducibility, a 30s node timeout, and no root grant (the empty
// permission set denies everything until a caller opts in).
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
		NodeTimeout:    runner.DefaultTimeout,
	}
}

// Engine is the top-level orchestrator: a Component cache, a Runner
// Dispatcher wired with the JS/WASM/Fragment runners, an output
// Cache, and the static resource providers the Host Interface
// consults.
type Engine struct {
	Components *component.Cache
	Dispatcher *runner.Dispatcher
	OutputCache store.Cache

	HTTPClient *http.Client
	Files      host.FileProvider
	Fonts      host.FontProvider
	Env        host.EnvProvider

	Config Config

	// WasmModule is the value New passes to the WASM Runner slot
	// (package runner/wasm). New reads it from the Engine it has just
	// allocated, where it is always nil, and assigning it after New
	// does not change the registered Runner; component.RunnerWasm
	// components therefore fail with RunnerError::Internal.
	WasmModule wasm.Module
}

// New builds an Engine. components must already be populated with
// (or able to load) every Component Definition a Rig it evaluates
// will reference.
func New(components *component.Cache, outputCache store.Cache, cfg Config) *Engine {
	e := &Engine{
		Components:  components,
		OutputCache: outputCache,
		Config:      cfg,
	}

	client, err := host.NewHTTPClient(cfg.NodeTimeout)
	if err != nil {
		client = &http.Client{Timeout: cfg.NodeTimeout}
	}
	e.HTTPClient = client

	d := runner.NewDispatcher()
	d.Register(component.RunnerJS, js.New())
	d.Register(component.RunnerWasm, wasm.New(e.WasmModule))
	d.Register(component.RunnerFragment, fragment.New(e))
	e.Dispatcher = d

	return e
}
