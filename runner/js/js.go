// Package js implements the JS Runner of spec.md section 4.5 using
// goja: compile once, run under a context-cancellable goja.Runtime,
// expose a host object to the guest as synchronous calls.
package js

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/slipwayhq/slipway/runner"
)

// InterruptedMessage is the Interrupt() payload goja reports back as
// a *goja.InterruptedError when a guest program is stopped for
// exceeding its deadline or because the invoking context was
// cancelled.
var InterruptedMessage = "slipway: runner timeout"

// Runner executes Component Definitions whose RunnerKind is
// component.RunnerJS.
type Runner struct{}

func New() *Runner { return &Runner{} }

func (r *Runner) Invoke(ctx context.Context, inv runner.Invocation) (json.RawMessage, *runner.Error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = runner.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	host := newHostBinding(vm, inv.Host, runCtx)
	vm.Set("slipway_host", host.object())

	var input interface{}
	if err := json.Unmarshal(inv.Input, &input); err != nil {
		return nil, runner.Internal("decoding input: " + err.Error())
	}
	vm.Set("__input", input)

	program, compileErr := goja.Compile("component.js", wrapSource(inv.Definition.JSSource), true)
	if compileErr != nil {
		return nil, runner.Internal("compiling component: " + compileErr.Error())
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(InterruptedMessage)
		case <-done:
		}
	}()

	out, runErr := r.run(vm, program)
	close(done)

	if runErr != nil {
		if _, isInterrupt := runErr.(*goja.InterruptedError); isInterrupt {
			if runCtx.Err() == context.DeadlineExceeded {
				return nil, runner.Timeout()
			}
			return nil, runner.Internal("interrupted: " + runCtx.Err().Error())
		}
		if host.hostCallErr != nil {
			return nil, runner.HostError(host.hostCallErr.Error())
		}
		return nil, runner.Panic(runErr.Error())
	}

	raw, marshalErr := json.Marshal(out)
	if marshalErr != nil {
		return nil, runner.Internal("marshalling output: " + marshalErr.Error())
	}
	return raw, nil
}

// run recovers from guest panics (goja surfaces a thrown non-Error
// value as a Go panic carrying a *goja.Exception) and reports them as
// a runner.Error via the caller.
func (r *Runner) run(vm *goja.Runtime, program *goja.Program) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()

	v, runErr := vm.RunProgram(program)
	if runErr != nil {
		return nil, runErr
	}
	return v.Export(), nil
}

// wrapSource adapts the guest's exported run(input) function (or
// output let-binding, per spec.md section 6) into a single expression
// this Runner evaluates for its result.
func wrapSource(src string) string {
	return fmt.Sprintf(`(function() {
%s
if (typeof run === "function") {
  return run(__input);
}
if (typeof output !== "undefined") {
  return output;
}
throw new Error("component defines neither run(input) nor output");
}());`, src)
}
