package refexpr

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// TestCanonicalizeGolden pins the exact byte layout Canonicalize
// produces -- sorted keys, compact separators, integral floats
// without a trailing ".0" -- since the cache fingerprint of spec.md
// section 4.4 depends on these bytes never drifting silently between
// runner versions.
func TestCanonicalizeGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	input := map[string]interface{}{
		"zeta":  1,
		"alpha": []interface{}{3, 2.5, "x"},
		"nested": map[string]interface{}{
			"b": true,
			"a": nil,
		},
	}

	out, err := Canonicalize(input)
	require.NoError(t, err)
	g.Assert(t, "canonicalize_basic", out)
}
