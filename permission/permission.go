// Package permission implements the hierarchical permission model of
// spec.md section 4.3: a tagged Permission variant, allow/deny Sets,
// and the Frame chain used to compute effective authority for a
// running component or one of its callouts.
package permission

import (
	"encoding/json"
	"errors"
	"strings"
)

// Kind names one of the permission variants listed in spec.md
// section 3.
type Kind string

const (
	KindFonts              Kind = "fonts"
	KindEnv                Kind = "env"
	KindHTTP               Kind = "http"
	KindRegistryComponents Kind = "registry_components"
	KindFiles              Kind = "files"
	KindAll                Kind = "all"
	KindCallouts           Kind = "callouts"
)

// Permission is a tagged variant. Only the fields relevant to Kind
// are meaningful; the rest are zero. Fields left empty are
// wildcards within their Kind (e.g. an http permission with an empty
// Prefix matches any URL).
type Permission struct {
	Kind Kind `json:"-" yaml:"-"`

	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Prefix     string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Handle     string `json:"handle,omitempty" yaml:"handle,omitempty"`
	PathPrefix string `json:"path_prefix,omitempty" yaml:"path_prefix,omitempty"`
}

// All is the permission that matches every capability.
func All() Permission { return Permission{Kind: KindAll} }

// Fonts matches any font-resolution capability.
func Fonts() Permission { return Permission{Kind: KindFonts} }

// RegistryComponents matches the capability to resolve components
// via the registry loader.
func RegistryComponents() Permission { return Permission{Kind: KindRegistryComponents} }

// Env matches the env(key) capability. An empty key matches any key.
func Env(key string) Permission { return Permission{Kind: KindEnv, Key: key} }

// HTTP matches the fetch_text/fetch_bin capability for URLs with the
// given prefix. An empty prefix matches any URL.
func HTTP(prefix string) Permission { return Permission{Kind: KindHTTP, Prefix: prefix} }

// Files matches the load_text/load_bin capability for the given file
// handle and path prefix. Empty fields are wildcards.
func Files(handle, pathPrefix string) Permission {
	return Permission{Kind: KindFiles, Handle: handle, PathPrefix: pathPrefix}
}

// Callouts matches the run(handle, ...) capability for the given
// callout handle. An empty handle matches any callout.
func Callouts(handle string) Permission { return Permission{Kind: KindCallouts, Handle: handle} }

// MarshalJSON writes the wire representation: either a bare string for the
// no-field variants ("all", "fonts", "registry_components") or a
// single-key object for the others, e.g. {"http":{"prefix":"..."}}.
func (p Permission) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindAll, KindFonts, KindRegistryComponents:
		return json.Marshal(string(p.Kind))
	case KindEnv:
		return json.Marshal(map[string]interface{}{"env": map[string]string{"key": p.Key}})
	case KindHTTP:
		return json.Marshal(map[string]interface{}{"http": map[string]string{"prefix": p.Prefix}})
	case KindFiles:
		return json.Marshal(map[string]interface{}{"files": map[string]string{
			"handle":      p.Handle,
			"path_prefix": p.PathPrefix,
		}})
	case KindCallouts:
		return json.Marshal(map[string]interface{}{"callouts": map[string]string{"handle": p.Handle}})
	default:
		return nil, errors.New("permission: unknown kind for marshaling")
	}
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch Kind(s) {
		case KindAll, KindFonts, KindRegistryComponents:
			p.Kind = Kind(s)
			return nil
		default:
			return errors.New("permission: unknown bare permission \"" + s + "\"")
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if len(obj) != 1 {
		return errors.New("permission: object form must have exactly one key")
	}
	for k, raw := range obj {
		switch Kind(k) {
		case KindEnv:
			var fields struct {
				Key string `json:"key"`
			}
			if err := json.Unmarshal(raw, &fields); err != nil {
				return err
			}
			*p = Env(fields.Key)
		case KindHTTP:
			var fields struct {
				Prefix string `json:"prefix"`
			}
			if err := json.Unmarshal(raw, &fields); err != nil {
				return err
			}
			*p = HTTP(fields.Prefix)
		case KindFiles:
			var fields struct {
				Handle     string `json:"handle"`
				PathPrefix string `json:"path_prefix"`
			}
			if err := json.Unmarshal(raw, &fields); err != nil {
				return err
			}
			*p = Files(fields.Handle, fields.PathPrefix)
		case KindCallouts:
			var fields struct {
				Handle string `json:"handle"`
			}
			if err := json.Unmarshal(raw, &fields); err != nil {
				return err
			}
			*p = Callouts(fields.Handle)
		default:
			return errors.New("permission: unknown permission kind \"" + k + "\"")
		}
	}
	return nil
}

// Capability is a concrete request presented for authorization at a
// host-interface call site.
type Capability struct {
	Kind   Kind
	URL    string
	Key    string
	Handle string
	Path   string
}

// Matches reports whether p authorizes cap, using the prefix/equality
// semantics of spec.md section 4.3.
func (p Permission) Matches(cap Capability) bool {
	if p.Kind == KindAll {
		return true
	}
	if p.Kind != cap.Kind {
		return false
	}
	switch p.Kind {
	case KindFonts, KindRegistryComponents:
		return true
	case KindEnv:
		return p.Key == "" || p.Key == cap.Key
	case KindHTTP:
		return p.Prefix == "" || strings.HasPrefix(cap.URL, p.Prefix)
	case KindFiles:
		if p.Handle != "" && p.Handle != cap.Handle {
			return false
		}
		return p.PathPrefix == "" || strings.HasPrefix(cap.Path, p.PathPrefix)
	case KindCallouts:
		return p.Handle == "" || p.Handle == cap.Handle
	default:
		return false
	}
}

// covers reports whether broad is at least as permissive as narrow,
// i.e. anything narrow matches, broad also matches. Used to
// compute the declared-permission narrowing described in spec.md
// section 4.3.
func covers(broad, narrow Permission) bool {
	if broad.Kind == KindAll {
		return true
	}
	if broad.Kind != narrow.Kind {
		return false
	}
	switch broad.Kind {
	case KindFonts, KindRegistryComponents:
		return true
	case KindEnv:
		return broad.Key == "" || broad.Key == narrow.Key
	case KindHTTP:
		return broad.Prefix == "" || strings.HasPrefix(narrow.Prefix, broad.Prefix)
	case KindFiles:
		if broad.Handle != "" && broad.Handle != narrow.Handle {
			return false
		}
		return broad.PathPrefix == "" || strings.HasPrefix(narrow.PathPrefix, broad.PathPrefix)
	case KindCallouts:
		return broad.Handle == "" || broad.Handle == narrow.Handle
	default:
		return false
	}
}

// Set is a pair of allow/deny lists, used for the declared
// requirements carried by a Component Definition or callout binding.
type Set struct {
	Allow []Permission `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny  []Permission `json:"deny,omitempty" yaml:"deny,omitempty"`
}

func union(a, b []Permission) []Permission {
	acc := make([]Permission, 0, len(a)+len(b))
	seen := map[Permission]bool{}
	for _, p := range append(append([]Permission{}, a...), b...) {
		if !seen[p] {
			seen[p] = true
			acc = append(acc, p)
		}
	}
	return acc
}

// narrow intersects allow with declared: for every pair of entries
// where one covers the other, the narrower of the two is kept. Pairs
// where neither covers the other contribute nothing. An empty (nil)
// declared set covers nothing, so narrowing against a missing
// declaration fails closed to an empty set -- see DESIGN.md's
// resolution of spec.md's Open Question on missing component/node
// permission declarations.
func narrow(allow, declared []Permission) []Permission {
	if len(declared) == 0 {
		return nil
	}
	acc := make([]Permission, 0, len(allow))
	for _, p := range allow {
		for _, d := range declared {
			if covers(d, p) {
				acc = append(acc, p)
			} else if covers(p, d) {
				acc = append(acc, d)
			}
		}
	}
	return union(acc, nil)
}
