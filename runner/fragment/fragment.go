// Package fragment implements the Fragment Runner of spec.md section
// 4.5: a Component whose payload is itself a Rig, evaluated as a
// nested sub-run under a Callout-narrowed permission Frame.
package fragment

import (
	"context"
	"encoding/json"

	"github.com/slipwayhq/slipway/runner"
)

// SubEvaluator runs a nested Rig to completion and extracts its
// result, without this package needing to import the top-level
// engine (which itself imports runner, so this dependency runs the
// other direction: the engine implements SubEvaluator and injects
// itself at construction).
type SubEvaluator interface {
	EvaluateFragment(ctx context.Context, fragmentRig json.RawMessage, input runner.Invocation) (json.RawMessage, error)
}

// Runner executes Component Definitions whose RunnerKind is
// component.RunnerFragment.
type Runner struct {
	Sub SubEvaluator
}

func New(sub SubEvaluator) *Runner {
	return &Runner{Sub: sub}
}

func (r *Runner) Invoke(ctx context.Context, inv runner.Invocation) (json.RawMessage, *runner.Error) {
	if len(inv.Definition.FragmentRig) == 0 {
		return nil, runner.Internal("fragment component has no embedded rig")
	}
	out, err := r.Sub.EvaluateFragment(ctx, inv.Definition.FragmentRig, inv)
	if err != nil {
		return nil, runner.Internal("fragment evaluation: " + err.Error())
	}
	return out, nil
}
