package js

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/permission"
	"github.com/slipwayhq/slipway/runner"
)

type fakeHost struct {
	envs map[string]string
}

func (f *fakeHost) LogTrace(string) {}
func (f *fakeHost) LogDebug(string) {}
func (f *fakeHost) LogInfo(string)  {}
func (f *fakeHost) LogWarn(string)  {}
func (f *fakeHost) LogError(string) {}

func (f *fakeHost) FetchText(ctx context.Context, url string, opts json.RawMessage) (json.RawMessage, error) {
	return nil, &permission.Denied{Capability: permission.Capability{Kind: permission.KindHTTP, URL: url}}
}
func (f *fakeHost) FetchBin(ctx context.Context, url string, opts json.RawMessage) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeHost) Run(ctx context.Context, handle string, input json.RawMessage) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeHost) LoadText(handle, path string) (string, error) { return "", errors.New("not implemented") }
func (f *fakeHost) LoadBin(handle, path string) ([]byte, error)  { return nil, errors.New("not implemented") }
func (f *fakeHost) Env(key string) (string, bool) {
	v, have := f.envs[key]
	return v, have
}
func (f *fakeHost) Font(stack string) (json.RawMessage, bool) { return nil, false }
func (f *fakeHost) EncodeBin(data []byte) string               { return string(data) }
func (f *fakeHost) DecodeBin(s string) ([]byte, error)         { return []byte(s), nil }

func TestJSRunnerExecutesRunFunction(t *testing.T) {
	def := &component.Definition{
		RunnerKind: component.RunnerJS,
		JSSource:   `function run(input) { return {value: input.value + 1}; }`,
	}
	r := New()
	out, runErr := r.Invoke(context.Background(), runner.Invocation{
		Definition: def,
		Input:      json.RawMessage(`{"value":1}`),
		Host:       &fakeHost{},
	})
	require.Nil(t, runErr)
	assert.JSONEq(t, `{"value":2}`, string(out))
}

func TestJSRunnerExecutesOutputBinding(t *testing.T) {
	def := &component.Definition{
		RunnerKind: component.RunnerJS,
		JSSource:   `var output = {value: __input.value * 2};`,
	}
	r := New()
	out, runErr := r.Invoke(context.Background(), runner.Invocation{
		Definition: def,
		Input:      json.RawMessage(`{"value":3}`),
		Host:       &fakeHost{},
	})
	require.Nil(t, runErr)
	assert.JSONEq(t, `{"value":6}`, string(out))
}

func TestJSRunnerTimesOut(t *testing.T) {
	def := &component.Definition{
		RunnerKind: component.RunnerJS,
		JSSource:   `function run(input) { while (true) {} }`,
	}
	r := New()
	out, runErr := r.Invoke(context.Background(), runner.Invocation{
		Definition: def,
		Input:      json.RawMessage(`{}`),
		Host:       &fakeHost{},
		Timeout:    50 * time.Millisecond,
	})
	require.Nil(t, out)
	require.NotNil(t, runErr)
	assert.Equal(t, runner.KindTimeout, runErr.Kind)
}

func TestJSRunnerPropagatesPermissionDenial(t *testing.T) {
	def := &component.Definition{
		RunnerKind: component.RunnerJS,
		JSSource:   `function run(input) { return slipway_host.fetch_text("http://x", undefined); }`,
	}
	r := New()
	_, runErr := r.Invoke(context.Background(), runner.Invocation{
		Definition: def,
		Input:      json.RawMessage(`{}`),
		Host:       &fakeHost{},
	})
	require.NotNil(t, runErr)
	assert.Equal(t, runner.KindPermissionDenied, runErr.Kind)
}

func TestJSRunnerReadsHostEnv(t *testing.T) {
	def := &component.Definition{
		RunnerKind: component.RunnerJS,
		JSSource:   `function run(input) { return {v: slipway_host.env("FOO")}; }`,
	}
	r := New()
	out, runErr := r.Invoke(context.Background(), runner.Invocation{
		Definition: def,
		Input:      json.RawMessage(`{}`),
		Host:       &fakeHost{envs: map[string]string{"FOO": "bar"}},
	})
	require.Nil(t, runErr)
	assert.JSONEq(t, `{"v":"bar"}`, string(out))
}
