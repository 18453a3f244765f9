package rig

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway/component"
)

type testLoader struct{}

func (testLoader) Load(ctx context.Context, ref component.Reference) (*component.Definition, error) {
	d := &component.Definition{RunnerKind: component.RunnerBuiltin, Builtin: func(in json.RawMessage) (json.RawMessage, error) { return in, nil }}
	return d, nil
}

func newTestCache(t *testing.T) *component.Cache {
	c, err := component.NewCache(testLoader{}, 0)
	require.NoError(t, err)
	return c
}

func TestValidateLinearGraph(t *testing.T) {
	doc := &Document{
		Rigging: map[string]*NodeDefinition{
			"a": {Component: "acme.increment.1.0.0", Input: json.RawMessage(`{"value":1}`)},
			"b": {Component: "acme.increment.1.0.0", Input: json.RawMessage(`{"value":"$$.a.value"}`)},
		},
	}
	g, err := Validate(context.Background(), doc, newTestCache(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Order)
	assert.Equal(t, []string{"a"}, g.Nodes["b"].Dependencies)
	assert.True(t, g.Nodes["a"].Literal)
	assert.False(t, g.Nodes["b"].Literal)
}

func TestValidateDetectsCycle(t *testing.T) {
	doc := &Document{
		Rigging: map[string]*NodeDefinition{
			"a": {Component: "acme.increment.1.0.0", Input: json.RawMessage(`{"x":"$$.b.y"}`)},
			"b": {Component: "acme.increment.1.0.0", Input: json.RawMessage(`{"y":"$$.a.y"}`)},
		},
	}
	_, err := Validate(context.Background(), doc, newTestCache(t))
	require.Error(t, err)
	verr, is := err.(*ValidationError)
	require.True(t, is)
	found := false
	for _, issue := range verr.Issues {
		if containsBoth(issue, "a", "b") {
			found = true
		}
	}
	assert.True(t, found, "expected cycle error naming both handles, got %v", verr.Issues)
}

func TestValidateRejectsSelfReference(t *testing.T) {
	doc := &Document{
		Rigging: map[string]*NodeDefinition{
			"a": {Component: "acme.increment.1.0.0", Input: json.RawMessage(`{"x":"$$.a.x"}`)},
		},
	}
	_, err := Validate(context.Background(), doc, newTestCache(t))
	require.Error(t, err)
}

func containsBoth(s, a, b string) bool {
	return contains(s, a) && contains(s, b)
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
