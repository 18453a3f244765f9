package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipwayhq/slipway/host"
	"github.com/slipwayhq/slipway/permission"
	"github.com/slipwayhq/slipway/refexpr"
	"github.com/slipwayhq/slipway/rig"
	"github.com/slipwayhq/slipway/runner"
	"github.com/slipwayhq/slipway/scheduler"
	"github.com/slipwayhq/slipway/store"
)

// Observer re-exports scheduler.Observer so callers don't need to
// import package scheduler themselves just to watch progress.
type Observer = scheduler.Observer

// Event re-exports scheduler.Event.
type Event = scheduler.Event

// Evaluate is the top-level entry point of spec.md section 7: parse
// and validate doc, then drive it to the Scheduler's halt condition,
// returning every node's final Snapshot. A validation error aborts
// before any node runs and is returned directly (never wrapped in a
// Snapshot).
func (e *Engine) Evaluate(ctx context.Context, doc *rig.Document, observer Observer) (map[string]*store.Snapshot, error) {
	graph, err := rig.Validate(ctx, doc, e.Components)
	if err != nil {
		return nil, err
	}

	rootFrame := permission.NewRootFrame(e.Config.RootAllow, e.Config.RootDeny)
	rs := newRunState()

	ev := &scheduler.Evaluator{
		Graph:          graph,
		MaxConcurrency: e.Config.MaxConcurrency,
		Observer:       observer,
		RunID:          uuid.NewString(),
		Execute: func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
			return e.executeNode(ctx, graph, node, rootFrame, rs)
		},
	}

	return ev.Run(ctx), nil
}

// runState is the shared, mutex-guarded table of completed node
// outputs that the Reference Language resolves $$.<handle> against
// (spec.md section 4.1). The Scheduler guarantees a node only starts
// once every dependency has written its entry.
type runState struct {
	mu        sync.Mutex
	outputs   map[string]interface{}
	runCounts map[string]int
}

func newRunState() *runState {
	return &runState{outputs: map[string]interface{}{}, runCounts: map[string]int{}}
}

// nextRunCount returns the next monotonic invocation count for a
// component reference, shared across ordinary node execution and
// recursive callout dispatch within one Evaluate run (mirroring
// original_source's execute/run_record.rs, whose RigRunRecord grows by
// one per actual component invocation).
func (rs *runState) nextRunCount(ref string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.runCounts[ref]++
	return rs.runCounts[ref]
}

func (rs *runState) set(handle string, output interface{}) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.outputs[handle] = output
}

func (rs *runState) snapshot() map[string]interface{} {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]interface{}, len(rs.outputs))
	for k, v := range rs.outputs {
		out[k] = v
	}
	return out
}

// executeNode implements one pass through InputReady -> {Completed,
// Failed} of spec.md section 4.4: resolve references, spot-check the
// resolved input's schema, compute the cache fingerprint, short-
// circuit on a cache hit, and otherwise dispatch to the Runner behind
// a freshly derived permission Frame.
func (e *Engine) executeNode(ctx context.Context, graph *rig.Graph, node *rig.ResolvedNode, rootFrame *permission.Frame, rs *runState) *store.Snapshot {
	snap := &store.Snapshot{Handle: node.Handle}

	rc := &refexpr.Context{Constants: graph.Constants, Outputs: rs.snapshot()}
	resolvedInput, err := refexpr.Resolve(node.RawInput, rc)
	if err != nil {
		return failSnapshot(snap, runner.KindInternal, "resolving input: "+err.Error())
	}
	snap.ResolvedInput = resolvedInput

	if err := node.Definition.ValidateInput(resolvedInput); err != nil {
		return failSnapshot(snap, runner.KindSchemaMismatch, "input: "+err.Error())
	}

	fingerprint, err := store.Fingerprint(resolvedInput, node.Definition.Reference.String(), node.Definition.RunnerVersionTag)
	if err != nil {
		return failSnapshot(snap, runner.KindInternal, "fingerprinting: "+err.Error())
	}
	snap.Fingerprint = fingerprint

	if e.OutputCache != nil {
		if entry, have, cacheErr := e.OutputCache.Get(fingerprint); cacheErr == nil && have {
			snap.Status = store.Completed
			snap.Output = entry.Output
			snap.Duration = entry.Duration
			snap.RunCount = entry.RunCount
			snap.Logs = entry.Logs
			snap.CacheHit = true
			rs.set(node.Handle, entry.Output)
			return snap
		}
	}

	frame := rootFrame.Child(node.Handle, node.Allow, node.Deny, node.Definition.RequiredPermissions)

	canonicalInput, err := refexpr.Canonicalize(resolvedInput)
	if err != nil {
		return failSnapshot(snap, runner.KindInternal, "canonicalizing input: "+err.Error())
	}

	h := host.New(frame, e.HTTPClient, e.Files, e.Fonts, e.Env, &calloutDispatcher{engine: e, node: node, frame: frame, rs: rs})

	start := time.Now()
	out, runErr := e.Dispatcher.Invoke(ctx, runner.Invocation{
		Definition: node.Definition,
		Input:      canonicalInput,
		Frame:      frame,
		Host:       h,
		Timeout:    e.Config.NodeTimeout,
	})
	snap.Duration = time.Since(start)
	snap.Logs = logLines(h.Logs())

	if runErr != nil {
		return failSnapshot(snap, runErr.Kind, runErr.Error())
	}

	var output interface{}
	if err := json.Unmarshal(out, &output); err != nil {
		return failSnapshot(snap, runner.KindInternal, "decoding output: "+err.Error())
	}
	if err := node.Definition.ValidateOutput(output); err != nil {
		return failSnapshot(snap, runner.KindSchemaMismatch, "output: "+err.Error())
	}

	snap.Status = store.Completed
	snap.Output = output
	snap.RunCount = rs.nextRunCount(node.Definition.Reference.String())
	rs.set(node.Handle, output)

	if e.OutputCache != nil {
		_ = e.OutputCache.Put(fingerprint, &store.Entry{Output: output, Duration: snap.Duration, RunCount: snap.RunCount, Logs: snap.Logs})
	}

	return snap
}

func failSnapshot(snap *store.Snapshot, kind runner.ErrorKind, detail string) *store.Snapshot {
	snap.Status = store.Failed
	snap.Error = detail
	snap.ErrorKind = string(kind)
	return snap
}

func logLines(entries []host.LogEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, "["+e.Level+"] "+e.Message)
	}
	return lines
}

// calloutDispatcher implements host.Dispatcher: it resolves a node's
// declared callout binding by handle, derives the callout's Frame,
// and invokes the target component directly (outside the Scheduler's
// DAG, as a synchronous nested call per spec.md section 5).
type calloutDispatcher struct {
	engine *Engine
	node   *rig.ResolvedNode
	frame  *permission.Frame
	rs     *runState
}

func (c *calloutDispatcher) Dispatch(ctx context.Context, handle string, input []byte) ([]byte, error) {
	rc, have := c.node.Callouts[handle]
	if !have {
		return nil, fmt.Errorf("engine: node %q declares no callout %q", c.node.Handle, handle)
	}

	def, err := c.engine.Components.Resolve(ctx, rc.Reference)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if err := json.Unmarshal(input, &decoded); err != nil {
		return nil, err
	}
	if err := def.ValidateInput(decoded); err != nil {
		return nil, err
	}

	calloutFrame := c.frame.Callout(handle, rc.Allow, rc.Deny)
	calloutCallouts := make(map[string]rig.ResolvedCallout, len(def.Callouts))
	for calloutHandle, decl := range def.Callouts {
		calloutCallouts[calloutHandle] = rig.ResolvedCallout{
			Handle:    calloutHandle,
			Reference: decl.Reference,
			Allow:     decl.Allow,
			Deny:      decl.Deny,
		}
	}
	calloutNode := &rig.ResolvedNode{Handle: handle, Definition: def, Callouts: calloutCallouts}

	h := host.New(calloutFrame, c.engine.HTTPClient, c.engine.Files, c.engine.Fonts, c.engine.Env,
		&calloutDispatcher{engine: c.engine, node: calloutNode, frame: calloutFrame, rs: c.rs})

	c.rs.nextRunCount(def.Reference.String())

	out, runErr := c.engine.Dispatcher.Invoke(ctx, runner.Invocation{
		Definition: def,
		Input:      input,
		Frame:      calloutFrame,
		Host:       h,
		Timeout:    c.engine.Config.NodeTimeout,
	})
	if runErr != nil {
		return nil, runErr
	}

	var outDecoded interface{}
	if err := json.Unmarshal(out, &outDecoded); err != nil {
		return nil, err
	}
	if err := def.ValidateOutput(outDecoded); err != nil {
		return nil, err
	}

	return out, nil
}

// EvaluateFragment implements runner/fragment.SubEvaluator: it parses
// the embedded Rig and evaluates it to completion, feeding the
// Fragment component's own resolved input in as the nested Rig's
// constants when the fragment declares none of its own. The nested
// Rig's "output" node, if present and Completed, is the Fragment's
// result; otherwise every Completed node's output is returned keyed
// by handle.
func (e *Engine) EvaluateFragment(ctx context.Context, fragmentRig json.RawMessage, inv runner.Invocation) (json.RawMessage, error) {
	doc, err := rig.Parse(fragmentRig)
	if err != nil {
		return nil, err
	}
	if len(doc.Constants) == 0 {
		doc.Constants = inv.Input
	}

	snapshots, err := e.Evaluate(ctx, doc, nil)
	if err != nil {
		return nil, err
	}

	if out, have := snapshots["output"]; have && out.Status == store.Completed {
		return json.Marshal(out.Output)
	}

	merged := make(map[string]interface{}, len(snapshots))
	for handle, snap := range snapshots {
		if snap.Status == store.Completed {
			merged[handle] = snap.Output
		}
	}
	return json.Marshal(merged)
}
