package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/slipwayhq/slipway/refexpr"
)

// Fingerprint computes the SHA-256 fingerprint of spec.md section
// 4.4: canonical_input || "\0" || component_reference || "\0" ||
// runner_version_tag.
//
// SHA-256 is used directly from crypto/sha256 rather than through a
// third-party hashing library because spec.md pins this exact
// algorithm as part of the cache-soundness contract (section 8); this
// is not a concern a library choice could vary.
func Fingerprint(resolvedInput interface{}, componentReference, runnerVersionTag string) (string, error) {
	canonical, err := refexpr.Canonicalize(resolvedInput)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte{0})
	h.Write([]byte(componentReference))
	h.Write([]byte{0})
	h.Write([]byte(runnerVersionTag))
	return hex.EncodeToString(h.Sum(nil)), nil
}
