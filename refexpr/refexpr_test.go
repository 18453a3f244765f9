package refexpr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsReference(t *testing.T) {
	cases := map[string]bool{
		"$.foo":       true,
		"$$.a":        true,
		"$$.a.b.c":    true,
		"$$$":         true,
		"$$$.device":  true,
		"plain":       false,
		"$notaref":    false,
		"$ .spaced":   false,
	}
	for in, want := range cases {
		_, got := IsReference(in)
		assert.Equalf(t, want, got, "IsReference(%q)", in)
	}
}

func TestExtractDependencies(t *testing.T) {
	raw := map[string]interface{}{
		"value": "$$.a.value",
		"nested": []interface{}{
			"$$.b",
			map[string]interface{}{"x": "$$.a.other"},
		},
		"lit": 3,
	}
	deps := ExtractDependencies(raw)
	assert.Equal(t, []string{"a", "b"}, deps)
}

func TestIsSelfReference(t *testing.T) {
	assert.True(t, IsSelfReference("a", "a"))
	assert.False(t, IsSelfReference("a", "b"))
}

func TestResolveLiteralAndReferences(t *testing.T) {
	rc := &Context{
		Constants: map[string]interface{}{"greeting": "hi"},
		Outputs: map[string]interface{}{
			"a": map[string]interface{}{"value": float64(2)},
		},
	}

	out, err := Resolve(map[string]interface{}{
		"value": "$$.a.value",
		"const": "$.greeting",
		"lit":   float64(5),
	}, rc)
	require.NoError(t, err)
	m := out.(map[string]interface{})
	assert.Equal(t, float64(2), m["value"])
	assert.Equal(t, "hi", m["const"])
	assert.Equal(t, float64(5), m["lit"])
}

func TestResolveAbsentPathIsNil(t *testing.T) {
	rc := &Context{Constants: map[string]interface{}{}}
	out, err := Resolve("$.missing.path", rc)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolveWholeNodeOutput(t *testing.T) {
	rc := &Context{
		Outputs: map[string]interface{}{
			"a": map[string]interface{}{"value": float64(2)},
		},
	}
	out, err := Resolve("$$.a", rc)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"value": float64(2)}, out)
}

func TestResolveScopedContext(t *testing.T) {
	rc := &Context{Scoped: map[string]interface{}{"device": "kindle"}}
	out, err := Resolve("$$$.device", rc)
	require.NoError(t, err)
	assert.Equal(t, "kindle", out)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	x := map[string]interface{}{"b": 1, "a": []interface{}{float64(1), float64(2.0)}}
	first, err := Canonicalize(x)
	require.NoError(t, err)

	var roundTripped interface{}
	require.NoError(t, json.Unmarshal(first, &roundTripped))

	second, err := Canonicalize(roundTripped)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, `{"a":[1,2],"b":1}`, string(first))
}
