package scheduler

import (
	"sort"
	"sync"

	"github.com/slipwayhq/slipway/rig"
	"github.com/slipwayhq/slipway/store"
)

// nodeState tracks one node's live status plus the bookkeeping the
// Evaluator needs to decide readiness (spec.md section 4.4).
type nodeState struct {
	snapshot *store.Snapshot
	pending  int // count of dependencies not yet Completed/Skipped/Failed
}

// board is the Evaluator's shared, mutex-guarded view of every node's
// state for one Run.
type board struct {
	mu       sync.Mutex
	nodes    map[string]*nodeState
	rank     map[string]int
	deps     map[string][]string
	revdep   map[string][]string
	observer Observer
	runID    string
}

func newBoard(g *rig.Graph, observer Observer, runID string) *board {
	b := &board{
		nodes:    make(map[string]*nodeState, len(g.Nodes)),
		rank:     g.Rank,
		deps:     make(map[string][]string, len(g.Nodes)),
		revdep:   make(map[string][]string, len(g.Nodes)),
		observer: observer,
		runID:    runID,
	}
	for h, n := range g.Nodes {
		b.nodes[h] = &nodeState{
			snapshot: &store.Snapshot{Handle: h, Status: store.Pending},
			pending:  len(n.Dependencies),
		}
		b.deps[h] = n.Dependencies
		for _, d := range n.Dependencies {
			b.revdep[d] = append(b.revdep[d], h)
		}
	}
	return b
}

// readyHandles returns the handles currently Pending with zero
// outstanding dependencies, sorted by the spec's tie-break: lower
// topological rank first, then lexicographic handle.
func (b *board) readyHandles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ready []string
	for h, ns := range b.nodes {
		if ns.snapshot.Status == store.Pending && ns.pending == 0 {
			ready = append(ready, h)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		ri, rj := b.rank[ready[i]], b.rank[ready[j]]
		if ri != rj {
			return ri < rj
		}
		return ready[i] < ready[j]
	})
	return ready
}

// markInputReady transitions handle from Pending to InputReady.
func (b *board) markInputReady(handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[handle].snapshot.Status = store.InputReady
}

func (b *board) markRunning(handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[handle].snapshot.Status = store.Running
}

// complete marks handle Completed (or, via markFailed, Failed) and
// decrements the pending-count of every direct dependent, cascading
// Skipped transitively through failed/skipped dependencies.
func (b *board) complete(handle string, snap *store.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[handle].snapshot = snap
	b.propagateLocked(handle)
}

func (b *board) markFailed(handle string, snap *store.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap.Status = store.Failed
	b.nodes[handle].snapshot = snap
	b.propagateLocked(handle)
}

func (b *board) propagateLocked(handle string) {
	failed := b.nodes[handle].snapshot.Status == store.Failed || b.nodes[handle].snapshot.Status == store.Skipped
	for _, dep := range b.revdep[handle] {
		ns := b.nodes[dep]
		ns.pending--
		if failed && ns.snapshot.Status == store.Pending {
			ns.snapshot.Status = store.Skipped
			ns.snapshot.FailedHandle = handle
			ns.snapshot.Error = "dependency failed or skipped: " + handle
			b.observer.emit(Event{RunID: b.runID, Kind: EventNodeSkipped, Handle: dep, Detail: ns.snapshot.Error})
			b.propagateLocked(dep)
		}
	}
}

// allTerminal reports whether no node is Pending, InputReady, or
// Running (the halt condition of spec.md section 4.4).
func (b *board) allTerminal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ns := range b.nodes {
		if !ns.snapshot.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (b *board) snapshotOf(handle string) *store.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nodes[handle].snapshot.Copy()
}

func (b *board) snapshots() map[string]*store.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*store.Snapshot, len(b.nodes))
	for h, ns := range b.nodes {
		out[h] = ns.snapshot.Copy()
	}
	return out
}
