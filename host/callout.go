package host

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/slipwayhq/slipway/permission"
)

func (h *Host) Run(ctx context.Context, handle string, input json.RawMessage) (json.RawMessage, error) {
	if err := h.authorize(permission.Capability{Kind: permission.KindCallouts, Handle: handle}); err != nil {
		return nil, err
	}
	if h.Callout == nil {
		return nil, errors.New("host: no callout dispatcher configured")
	}
	return h.Callout.Dispatch(ctx, handle, input)
}
