package js

import (
	"context"
	"encoding/json"

	"github.com/dop251/goja"

	"github.com/slipwayhq/slipway/runner"
)

// hostBinding projects a runner.Host onto the guest's global
// slipway_host object. Each call is synchronous from goja's
// perspective: the guest blocks until the Go side returns, and a
// failed call (whether a denied permission, a network error, or
// anything else the host surface reports) is thrown into the guest
// as a catchable error rather than a hard Go panic, so a component
// that wraps a fetch or run call in try/catch can recover from it.
type hostBinding struct {
	vm   *goja.Runtime
	host runner.Host
	ctx  context.Context

	// hostCallErr is set whenever a host call returns an error, so
	// an uncaught guest exception can be told apart from a genuine
	// guest runtime panic and reported as RunnerError::Host rather
	// than RunnerError::Panic.
	hostCallErr error
}

func newHostBinding(vm *goja.Runtime, host runner.Host, ctx context.Context) *hostBinding {
	return &hostBinding{vm: vm, host: host, ctx: ctx}
}

func (h *hostBinding) protest(err error) {
	h.hostCallErr = err
	panic(h.vm.ToValue(err.Error()))
}

func (h *hostBinding) object() map[string]interface{} {
	return map[string]interface{}{
		"log_trace": h.host.LogTrace,
		"log_debug": h.host.LogDebug,
		"log_info":  h.host.LogInfo,
		"log_warn":  h.host.LogWarn,
		"log_error": h.host.LogError,

		"fetch_text": func(url string, opts goja.Value) interface{} {
			v, err := h.host.FetchText(h.ctx, url, toRaw(opts))
			if err != nil {
				h.protest(err)
			}
			return unmarshalRaw(v)
		},
		"fetch_bin": func(url string, opts goja.Value) interface{} {
			v, err := h.host.FetchBin(h.ctx, url, toRaw(opts))
			if err != nil {
				h.protest(err)
			}
			return unmarshalRaw(v)
		},
		"run": func(handle string, input goja.Value) interface{} {
			v, err := h.host.Run(h.ctx, handle, toRaw(input))
			if err != nil {
				h.protest(err)
			}
			return unmarshalRaw(v)
		},
		"load_text": func(handle, path string) string {
			v, err := h.host.LoadText(handle, path)
			if err != nil {
				h.protest(err)
			}
			return v
		},
		"load_bin": func(handle, path string) string {
			v, err := h.host.LoadBin(handle, path)
			if err != nil {
				h.protest(err)
			}
			return string(v)
		},
		"env": func(key string) interface{} {
			v, have := h.host.Env(key)
			if !have {
				return goja.Undefined()
			}
			return v
		},
		"font": func(stack string) interface{} {
			v, have := h.host.Font(stack)
			if !have {
				return goja.Undefined()
			}
			return unmarshalRaw(v)
		},
		"encode_bin": func(data string) string { return h.host.EncodeBin([]byte(data)) },
		"decode_bin": func(s string) string {
			bs, err := h.host.DecodeBin(s)
			if err != nil {
				h.protest(err)
			}
			return string(bs)
		},
	}
}

func toRaw(v goja.Value) json.RawMessage {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	bs, err := json.Marshal(v.Export())
	if err != nil {
		return nil
	}
	return bs
}

func unmarshalRaw(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
