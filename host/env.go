package host

import "github.com/slipwayhq/slipway/permission"

// MapEnv is the simplest EnvProvider: a fixed map of key-value pairs,
// suitable for tests and for a CLI caller's --env flags.
type MapEnv map[string]string

func (m MapEnv) Lookup(key string) (string, bool) {
	v, have := m[key]
	return v, have
}

func (h *Host) Env(key string) (string, bool) {
	if err := h.authorize(permission.Capability{Kind: permission.KindEnv, Key: key}); err != nil {
		return "", false
	}
	if h.EnvSrc == nil {
		return "", false
	}
	return h.EnvSrc.Lookup(key)
}
