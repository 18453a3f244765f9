package runner

import (
	"context"
	"encoding/json"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/internal/xlog"
)

// Dispatcher routes an Invocation to the Runner registered for the
// Component Definition's runner kind.
type Dispatcher struct {
	runners map[component.RunnerKind]Runner
}

// NewDispatcher builds a Dispatcher with no runners registered; call
// Register for each kind the embedding engine supports.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{runners: make(map[component.RunnerKind]Runner)}
}

func (d *Dispatcher) Register(kind component.RunnerKind, r Runner) {
	d.runners[kind] = r
}

// Invoke looks up the Runner for inv.Definition.RunnerKind and
// delegates to it. Builtin components bypass the registered runner
// table entirely: they are native Go functions wired directly into
// the Component Definition.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, *Error) {
	if inv.Definition.RunnerKind == component.RunnerBuiltin {
		if inv.Definition.Builtin == nil {
			return nil, Internal("builtin component has no implementation")
		}
		out, err := inv.Definition.Builtin(inv.Input)
		if err != nil {
			return nil, Internal(err.Error())
		}
		return out, nil
	}

	r, have := d.runners[inv.Definition.RunnerKind]
	if !have {
		xlog.Logf("runner: dispatch kind %q not registered", inv.Definition.RunnerKind)
		return nil, Internal("no runner registered for kind " + string(inv.Definition.RunnerKind))
	}
	return r.Invoke(ctx, inv)
}
