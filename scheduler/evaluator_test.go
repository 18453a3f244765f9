package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway/rig"
	"github.com/slipwayhq/slipway/store"
)

func linearGraph() *rig.Graph {
	a := &rig.ResolvedNode{Handle: "a", Dependencies: nil}
	b := &rig.ResolvedNode{Handle: "b", Dependencies: []string{"a"}}
	c := &rig.ResolvedNode{Handle: "c", Dependencies: []string{"b"}}
	return &rig.Graph{
		Nodes: map[string]*rig.ResolvedNode{"a": a, "b": b, "c": c},
		Order: []string{"a", "b", "c"},
		Rank:  map[string]int{"a": 0, "b": 1, "c": 2},
	}
}

func TestEvaluatorRunsInDependencyOrder(t *testing.T) {
	g := linearGraph()

	var mu sync.Mutex
	var order []string

	exec := func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
		mu.Lock()
		order = append(order, node.Handle)
		mu.Unlock()
		return &store.Snapshot{Status: store.Completed, Output: node.Handle}
	}

	ev := &Evaluator{Graph: g, Execute: exec, MaxConcurrency: 1}
	result := ev.Run(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, store.Completed, result["a"].Status)
	assert.Equal(t, store.Completed, result["c"].Status)
}

func TestEvaluatorCascadesSkippedOnFailure(t *testing.T) {
	g := linearGraph()

	exec := func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
		if node.Handle == "b" {
			return &store.Snapshot{Status: store.Failed, Error: "boom"}
		}
		return &store.Snapshot{Status: store.Completed}
	}

	ev := &Evaluator{Graph: g, Execute: exec, MaxConcurrency: 1}
	result := ev.Run(context.Background())

	assert.Equal(t, store.Completed, result["a"].Status)
	assert.Equal(t, store.Failed, result["b"].Status)
	assert.Equal(t, store.Skipped, result["c"].Status)
	assert.Equal(t, "b", result["c"].FailedHandle)
}

func TestEvaluatorRespectsMaxConcurrency(t *testing.T) {
	g := &rig.Graph{
		Nodes: map[string]*rig.ResolvedNode{
			"a": {Handle: "a"},
			"b": {Handle: "b"},
		},
		Rank: map[string]int{"a": 0, "b": 0},
	}

	var concurrent int32
	var maxSeen int32
	release := make(chan struct{})

	exec := func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
		n := atomic.AddInt32(&concurrent, 1)
		for {
			m := atomic.LoadInt32(&maxSeen)
			if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&concurrent, -1)
		return &store.Snapshot{Status: store.Completed}
	}

	ev := &Evaluator{Graph: g, Execute: exec, MaxConcurrency: 1}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	ev.Run(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxSeen))
}

func TestEvaluatorStopsDispatchingOnCancellation(t *testing.T) {
	g := linearGraph()
	ctx, cancel := context.WithCancel(context.Background())

	var ran int32
	exec := func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
		atomic.AddInt32(&ran, 1)
		if node.Handle == "a" {
			cancel()
		}
		return &store.Snapshot{Status: store.Completed}
	}

	ev := &Evaluator{Graph: g, Execute: exec, MaxConcurrency: 1}
	result := ev.Run(ctx)

	assert.Equal(t, store.Completed, result["a"].Status)
	assert.Equal(t, store.Pending, result["b"].Status)
	assert.Equal(t, store.Pending, result["c"].Status)
}

func TestEvaluatorEmitsSkippedEventOnCascade(t *testing.T) {
	g := linearGraph()
	var mu sync.Mutex
	var events []Event

	exec := func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
		if node.Handle == "a" {
			return &store.Snapshot{Status: store.Failed, Error: "boom"}
		}
		return &store.Snapshot{Status: store.Completed}
	}
	ev := &Evaluator{
		Graph:   g,
		Execute: exec,
		RunID:   "run-1",
		Observer: func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	}
	ev.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	var skipped []Event
	for _, e := range events {
		if e.Kind == EventNodeSkipped {
			skipped = append(skipped, e)
		}
	}
	require.Len(t, skipped, 2)
	for _, e := range skipped {
		assert.Equal(t, "run-1", e.RunID)
		assert.Contains(t, []string{"b", "c"}, e.Handle)
	}
}

func TestEvaluatorObserverReceivesEvents(t *testing.T) {
	g := linearGraph()
	var events []Event
	var mu sync.Mutex

	exec := func(ctx context.Context, node *rig.ResolvedNode) *store.Snapshot {
		return &store.Snapshot{Status: store.Completed}
	}
	ev := &Evaluator{
		Graph:   g,
		Execute: exec,
		Observer: func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	}
	ev.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	foundCompleted := false
	for _, e := range events {
		if e.Kind == EventNodeCompleted && e.Handle == "c" {
			foundCompleted = true
		}
	}
	assert.True(t, foundCompleted)
}
