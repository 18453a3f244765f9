package runner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway/component"
)

type stubRunner struct {
	out json.RawMessage
	err *Error
}

func (s stubRunner) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, *Error) {
	return s.out, s.err
}

func TestDispatcherRoutesByRunnerKind(t *testing.T) {
	d := NewDispatcher()
	d.Register(component.RunnerJS, stubRunner{out: json.RawMessage(`{"ok":true}`)})

	def := &component.Definition{RunnerKind: component.RunnerJS}
	out, err := d.Invoke(context.Background(), Invocation{Definition: def})
	require.Nil(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestDispatcherInvokesBuiltinDirectly(t *testing.T) {
	d := NewDispatcher()
	def := &component.Definition{
		RunnerKind: component.RunnerBuiltin,
		Builtin: func(in json.RawMessage) (json.RawMessage, error) {
			return in, nil
		},
	}
	out, err := d.Invoke(context.Background(), Invocation{Definition: def, Input: json.RawMessage(`{"x":1}`)})
	require.Nil(t, err)
	assert.JSONEq(t, `{"x":1}`, string(out))
}

func TestDispatcherReportsMissingRunner(t *testing.T) {
	d := NewDispatcher()
	def := &component.Definition{RunnerKind: component.RunnerWasm}
	_, err := d.Invoke(context.Background(), Invocation{Definition: def})
	require.NotNil(t, err)
	assert.Equal(t, KindInternal, err.Kind)
}

func TestErrorConstructorsSetKind(t *testing.T) {
	assert.Equal(t, KindTimeout, Timeout().Kind)
	assert.Equal(t, KindPanic, Panic("trace").Kind)
	assert.Equal(t, KindSchemaMismatch, SchemaMismatch(SchemaInput, "bad").Kind)
	assert.Equal(t, KindPermissionDenied, PermissionDenied("http").Kind)
	assert.Equal(t, KindHost, HostError("oops").Kind)
	assert.Equal(t, KindInternal, Internal("oops").Kind)
}
