package fragment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/runner"
)

type fakeSub struct {
	out json.RawMessage
	err error
}

func (f *fakeSub) EvaluateFragment(ctx context.Context, fragmentRig json.RawMessage, inv runner.Invocation) (json.RawMessage, error) {
	return f.out, f.err
}

func TestFragmentRunnerDelegatesToSubEvaluator(t *testing.T) {
	r := New(&fakeSub{out: json.RawMessage(`{"value":4}`)})
	def := &component.Definition{
		RunnerKind:  component.RunnerFragment,
		FragmentRig: json.RawMessage(`{"rigging":{}}`),
	}
	out, runErr := r.Invoke(context.Background(), runner.Invocation{Definition: def})
	require.Nil(t, runErr)
	assert.JSONEq(t, `{"value":4}`, string(out))
}

func TestFragmentRunnerRejectsMissingRig(t *testing.T) {
	r := New(&fakeSub{})
	def := &component.Definition{RunnerKind: component.RunnerFragment}
	_, runErr := r.Invoke(context.Background(), runner.Invocation{Definition: def})
	require.NotNil(t, runErr)
	assert.Equal(t, runner.KindInternal, runErr.Kind)
}
