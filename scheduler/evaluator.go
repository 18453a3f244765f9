package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/slipwayhq/slipway/rig"
	"github.com/slipwayhq/slipway/store"
)

// NodeExecutor runs one node to completion: checking the cache,
// invoking the Runner on a miss, and recording the outcome. It must
// return a Snapshot whose Status is one of the terminal states
// (Completed or Failed) — Skipped is the Evaluator's own concern,
// cascaded automatically from failed dependencies.
type NodeExecutor func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot

// Evaluator drives a rig.Graph through the state machine of spec.md
// section 4.4, dispatching ready nodes to a NodeExecutor under a
// bounded concurrency pool.
type Evaluator struct {
	Graph *rig.Graph
	// Execute is invoked once per node that reaches InputReady
	// without a Skipped-cascading dependency failure.
	Execute NodeExecutor
	// MaxConcurrency bounds simultaneous node executions. Zero or
	// negative defaults to 1, matching spec.md's reproducibility
	// default.
	MaxConcurrency int
	// Observer, if non-nil, receives progress Events as the run
	// proceeds.
	Observer Observer
	// RunID tags every emitted Event, letting a caller correlate
	// Events from concurrent Evaluate calls against the same
	// Observer.
	RunID string
}

// Run evaluates the Graph to its halt condition: no node remaining in
// Pending, InputReady, or Running. It returns every node's final
// Snapshot. Cancelling ctx stops dispatching new ready nodes; nodes
// already dispatched are allowed to finish (or to observe the
// cancellation themselves at their next host call or timeout tick,
// per spec.md section 5) and any node never reached stays Pending.
func (e *Evaluator) Run(ctx context.Context) map[string]*store.Snapshot {
	maxConcurrency := e.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	b := newBoard(e.Graph, e.Observer, e.RunID)
	sem := semaphore.NewWeighted(int64(maxConcurrency))
	var wg sync.WaitGroup
	done := make(chan struct{}, len(e.Graph.Nodes)+1)

	dispatch := func(handle string) {
		b.markInputReady(handle)
		e.Observer.emit(Event{RunID: e.RunID, Kind: EventNodeInputReady, Handle: handle})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()

			b.markRunning(handle)
			e.Observer.emit(Event{RunID: e.RunID, Kind: EventNodeRunning, Handle: handle})

			node := e.Graph.Nodes[handle]
			snap := e.Execute(ctx, node)
			snap.Handle = handle

			if snap.Status == store.Failed {
				b.markFailed(handle, snap)
				e.Observer.emit(Event{RunID: e.RunID, Kind: EventNodeFailed, Handle: handle, Detail: snap.Error})
			} else {
				b.complete(handle, snap)
				e.Observer.emit(Event{RunID: e.RunID, Kind: EventNodeCompleted, Handle: handle})
			}
		}()
	}

	for {
		if b.allTerminal() {
			break
		}
		if ctx.Err() != nil {
			e.Observer.emit(Event{RunID: e.RunID, Kind: EventRunHalted, Detail: ctx.Err().Error()})
			break
		}

		ready := b.readyHandles()
		dispatched := 0
		for _, handle := range ready {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			dispatch(handle)
			dispatched++
		}

		if dispatched == 0 {
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
	}

	wg.Wait()
	return b.snapshots()
}
