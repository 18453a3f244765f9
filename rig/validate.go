package rig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/slipwayhq/slipway/component"
	"github.com/slipwayhq/slipway/permission"
	"github.com/slipwayhq/slipway/refexpr"
)

// ResolvedCallout is the effective callout binding for a node: the
// component reference it invokes (either the component's declared
// default or a node-level override) and the permissions declared for
// that callout handle (always the component's declaration; an
// override only changes the target reference, per spec.md section
// 6).
type ResolvedCallout struct {
	Handle    string
	Reference component.Reference
	Allow     []permission.Permission
	Deny      []permission.Permission
}

// ResolvedNode is a Rig node after validation: its Definition, its
// raw (not yet reference-resolved) input, its dependency edges, and
// its effective callout bindings.
type ResolvedNode struct {
	Handle       string
	Definition   *component.Definition
	RawInput     interface{}
	Allow        []permission.Permission
	Deny         []permission.Permission
	Dependencies []string
	Callouts     map[string]ResolvedCallout

	// Literal is true when RawInput contains no reference
	// expressions at all, making it eligible for the immediate
	// input-schema spot-check of spec.md section 4.2 step 5.
	Literal bool
}

// Graph is a validated Rig: an acyclic dependency graph of
// ResolvedNodes in topological order, ready for the Scheduler.
type Graph struct {
	Doc       *Document
	Constants interface{}
	Nodes     map[string]*ResolvedNode
	Order     []string
	Rank      map[string]int
}

// Parse decodes data as a Rig document, rejecting unknown fields
// (spec.md section 4.2 step 1).
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("rig: parse failed: %w", err)
	}
	return &doc, nil
}

// Validate runs the validation pipeline of spec.md section 4.2 over
// doc, resolving component references through cache, and returns the
// resulting Graph or an aggregate *ValidationError.
func Validate(ctx context.Context, doc *Document, cache *component.Cache) (*Graph, error) {
	verr := &ValidationError{}

	constants, err := doc.DecodedConstants()
	if err != nil {
		verr.add("constants: %s", err)
		return nil, verr.errOrNil()
	}

	handles := make([]string, 0, len(doc.Rigging))
	for h := range doc.Rigging {
		handles = append(handles, h)
	}

	nodes := make(map[string]*ResolvedNode, len(doc.Rigging))
	depEdges := edges{}

	// Step 2: resolve component references, priming the component
	// cache for every handle before permissions or the dependency
	// graph are computed.
	for _, handle := range handles {
		nodeDef := doc.Rigging[handle]

		ref, err := component.ParseReference(nodeDef.Component)
		if err != nil {
			verr.add("node %q: %s", handle, err)
			continue
		}
		def, err := cache.Resolve(ctx, ref)
		if err != nil {
			verr.add("node %q: component %q: %s", handle, nodeDef.Component, err)
			continue
		}

		rawInput, err := nodeDef.DecodedInput()
		if err != nil {
			verr.add("node %q: input: %s", handle, err)
			continue
		}

		deps := refexpr.ExtractDependencies(rawInput)
		for _, d := range deps {
			if refexpr.IsSelfReference(handle, d) {
				verr.add("node %q: self-reference via $$.%s is not allowed", handle, d)
			}
		}
		depEdges[handle] = deps

		nodes[handle] = &ResolvedNode{
			Handle:       handle,
			Definition:   def,
			RawInput:     rawInput,
			Allow:        nodeDef.Allow,
			Deny:         nodeDef.Deny,
			Dependencies: deps,
			Literal:      !containsReference(rawInput),
		}
	}

	if len(verr.Issues) > 0 {
		return nil, verr
	}

	// Step 3+4: build edges, topologically sort, and report cycles.
	for _, h := range handles {
		for _, d := range depEdges[h] {
			if _, have := nodes[d]; !have {
				verr.add("node %q: references unknown node handle %q", h, d)
			}
		}
	}
	if len(verr.Issues) > 0 {
		return nil, verr
	}

	order, cycles := toposort(handles, depEdges)
	for _, c := range cycles {
		verr.add("cycle detected among nodes: %v", c.Handles)
	}
	if len(verr.Issues) > 0 {
		return nil, verr
	}

	rank := make(map[string]int, len(order))
	for i, h := range order {
		rank[h] = i
	}

	// Step 5: input-schema spot check for purely literal inputs.
	for _, h := range handles {
		n := nodes[h]
		if !n.Literal {
			continue
		}
		if err := n.Definition.ValidateInput(n.RawInput); err != nil {
			verr.add("node %q: input schema: %s", h, err)
		}
	}

	// Step 6: callout binding.
	for _, h := range handles {
		n := nodes[h]
		nodeDef := doc.Rigging[h]
		callouts := make(map[string]ResolvedCallout, len(n.Definition.Callouts))
		for calloutHandle, decl := range n.Definition.Callouts {
			targetRef := decl.Reference
			if override, has := nodeDef.Callouts[calloutHandle]; has {
				parsed, err := component.ParseReference(override.Component)
				if err != nil {
					verr.add("node %q: callout %q override: %s", h, calloutHandle, err)
					continue
				}
				targetRef = parsed
			}
			if _, err := cache.Resolve(ctx, targetRef); err != nil {
				verr.add("node %q: callout %q: %s", h, calloutHandle, err)
				continue
			}
			callouts[calloutHandle] = ResolvedCallout{
				Handle:    calloutHandle,
				Reference: targetRef,
				Allow:     decl.Allow,
				Deny:      decl.Deny,
			}
		}
		n.Callouts = callouts
	}

	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	return &Graph{
		Doc:       doc,
		Constants: constants,
		Nodes:     nodes,
		Order:     order,
		Rank:      rank,
	}, nil
}

// containsReference reports whether raw contains any reference
// expression anywhere within it (used for the literal-input spot
// check of spec.md section 4.2 step 5).
func containsReference(raw interface{}) bool {
	switch v := raw.(type) {
	case string:
		_, is := refexpr.IsReference(v)
		return is
	case map[string]interface{}:
		for _, vv := range v {
			if containsReference(vv) {
				return true
			}
		}
	case []interface{}:
		for _, vv := range v {
			if containsReference(vv) {
				return true
			}
		}
	}
	return false
}
