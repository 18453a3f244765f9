package host

import (
	"encoding/json"

	"github.com/slipwayhq/slipway/permission"
)

func (h *Host) Font(stack string) (json.RawMessage, bool) {
	if err := h.authorize(permission.Capability{Kind: permission.KindFonts}); err != nil {
		return nil, false
	}
	if h.Fonts == nil {
		return nil, false
	}
	resolved, have := h.Fonts.Resolve(stack)
	if !have {
		return nil, false
	}
	bs, err := json.Marshal(resolved)
	if err != nil {
		return nil, false
	}
	return bs, true
}
