// Package rig implements the Rig Model & Validator (spec.md section
// 4.2): parsing a Rig document, resolving its node's component
// references, and validating it into an acyclic dependency graph
// ready for the Scheduler.
package rig

import (
	"encoding/json"

	"github.com/slipwayhq/slipway/permission"
)

// Document is an immutable Rig document (spec.md section 6).
type Document struct {
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Constants   json.RawMessage           `json:"constants,omitempty" yaml:"constants,omitempty"`
	Rigging     map[string]*NodeDefinition `json:"rigging" yaml:"rigging"`
}

// CalloutOverride replaces a component's declared callout binding for
// a single node.
type CalloutOverride struct {
	Component string `json:"component" yaml:"component"`
}

// NodeDefinition is a single "rigging" entry (spec.md section 6).
type NodeDefinition struct {
	Component string                         `json:"component" yaml:"component"`
	Input     json.RawMessage                `json:"input,omitempty" yaml:"input,omitempty"`
	Allow     []permission.Permission         `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny      []permission.Permission         `json:"deny,omitempty" yaml:"deny,omitempty"`
	Callouts  map[string]CalloutOverride      `json:"callouts,omitempty" yaml:"callouts,omitempty"`
}

// DecodedConstants unmarshals the Document's Constants into generic
// JSON, defaulting to an empty object when absent.
func (d *Document) DecodedConstants() (interface{}, error) {
	if len(d.Constants) == 0 {
		return map[string]interface{}{}, nil
	}
	var x interface{}
	if err := json.Unmarshal(d.Constants, &x); err != nil {
		return nil, err
	}
	return x, nil
}

// DecodedInput unmarshals a node's raw Input into generic JSON,
// defaulting to nil when absent.
func (n *NodeDefinition) DecodedInput() (interface{}, error) {
	if len(n.Input) == 0 {
		return nil, nil
	}
	var x interface{}
	if err := json.Unmarshal(n.Input, &x); err != nil {
		return nil, err
	}
	return x, nil
}
