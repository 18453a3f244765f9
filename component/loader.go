package component

import (
	"context"
	"errors"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Loader resolves a Component Reference into a Definition. Concrete
// loaders (registry lookup, tarball extraction, filesystem package
// directories) are an external collaborator per spec.md section 1;
// this package only defines the contract the engine consumes.
type Loader interface {
	// Load fetches the Definition for the exact reference ref
	// (Version must already be a concrete "x.y.z").
	Load(ctx context.Context, ref Reference) (*Definition, error)
}

// VersionLister is an optional capability a Loader can implement to
// support compatibility-constraint resolution (spec.md section 4.2
// step 2): listing the concrete versions available for a
// publisher/name pair so the highest one satisfying a constraint can
// be selected.
type VersionLister interface {
	Versions(ctx context.Context, publisher, name string) ([]string, error)
}

// NotFound is returned by a Loader (or reported by Cache) when no
// version of a component reference could be resolved.
type NotFound struct {
	Reference  string
	Candidates []string
}

func (e *NotFound) Error() string {
	msg := "component: \"" + e.Reference + "\" not found"
	if len(e.Candidates) > 0 {
		msg += "; did you mean: "
		for i, c := range e.Candidates {
			if i > 0 {
				msg += ", "
			}
			msg += c
		}
		msg += "?"
	}
	return msg
}

// Cache wraps a Loader with:
//   - an LRU of resolved Definitions, keyed by concrete reference,
//     so each Reference is loaded once per process lifetime (spec.md
//     section 3, "Lifecycle");
//   - a table of builtin Definitions that never touch the underlying
//     Loader, for engine-internal components backed by a Go function
//     rather than a loaded package;
//   - fuzzy-matched "did you mean" suggestions drawn from everything
//     the cache has already resolved, when an underlying Load fails.
type Cache struct {
	mu       sync.RWMutex
	loader   Loader
	cache    *lru.Cache[string, *Definition]
	builtins map[string]*Definition
	known    []string
}

// NewCache builds a Cache of the given size wrapping loader.
func NewCache(loader Loader, size int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, *Definition](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		loader:   loader,
		cache:    c,
		builtins: map[string]*Definition{},
	}, nil
}

// RegisterBuiltin installs a Definition served directly from memory
// for the given exact reference, bypassing the underlying Loader.
func (c *Cache) RegisterBuiltin(ref Reference, def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	def.Reference = ref
	c.builtins[ref.String()] = def
}

// Resolve resolves ref (possibly a compatibility constraint) against
// loaded/known versions, then loads (or returns the cached) exact
// Definition.
func (c *Cache) Resolve(ctx context.Context, ref Reference) (*Definition, error) {
	exact := ref
	if ref.IsConstraint() {
		versions, err := c.candidateVersions(ctx, ref)
		if err != nil {
			return nil, err
		}
		best, err := ref.HighestSatisfying(versions)
		if err != nil {
			return nil, err
		}
		if best == "" {
			return nil, &NotFound{Reference: ref.String(), Candidates: c.suggest(ref)}
		}
		exact = Reference{Publisher: ref.Publisher, Name: ref.Name, Version: best}
	}

	key := exact.String()

	c.mu.RLock()
	if def, have := c.builtins[key]; have {
		c.mu.RUnlock()
		return def, nil
	}
	if def, have := c.cache.Get(key); have {
		c.mu.RUnlock()
		return def, nil
	}
	c.mu.RUnlock()

	def, err := c.loader.Load(ctx, exact)
	if err != nil {
		var nf *NotFound
		if errors.As(err, &nf) && len(nf.Candidates) == 0 {
			nf.Candidates = c.suggest(ref)
		}
		return nil, err
	}
	if err := def.CompileSchemas(); err != nil {
		return nil, err
	}
	def.Reference = exact

	c.mu.Lock()
	c.cache.Add(key, def)
	c.known = append(c.known, exact.Publisher+"."+exact.Name)
	c.mu.Unlock()

	return def, nil
}

func (c *Cache) candidateVersions(ctx context.Context, ref Reference) ([]string, error) {
	versions := map[string]bool{}

	c.mu.RLock()
	for key := range c.builtins {
		if b, err := ParseReference(key); err == nil && b.Publisher == ref.Publisher && b.Name == ref.Name {
			versions[b.Version] = true
		}
	}
	for _, key := range c.cache.Keys() {
		if b, err := ParseReference(key); err == nil && b.Publisher == ref.Publisher && b.Name == ref.Name {
			versions[b.Version] = true
		}
	}
	c.mu.RUnlock()

	if lister, is := c.loader.(VersionLister); is {
		vs, err := lister.Versions(ctx, ref.Publisher, ref.Name)
		if err != nil {
			return nil, err
		}
		for _, v := range vs {
			versions[v] = true
		}
	}

	acc := make([]string, 0, len(versions))
	for v := range versions {
		acc = append(acc, v)
	}
	sort.Strings(acc)
	return acc, nil
}

func (c *Cache) suggest(ref Reference) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	want := ref.Publisher + "." + ref.Name
	return fuzzy.Find(want, c.known)
}
