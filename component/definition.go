package component

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/slipwayhq/slipway/permission"
)

// RunnerKind names which Runner a Definition's payload targets
// (spec.md section 3).
type RunnerKind string

const (
	RunnerWasm     RunnerKind = "wasm"
	RunnerJS       RunnerKind = "js"
	RunnerFragment RunnerKind = "fragment"

	// RunnerBuiltin is an engine-internal extension: a Definition
	// backed by a Go function rather than a loaded package.
	RunnerBuiltin RunnerKind = "builtin"
)

// CalloutDecl is a component-declared callout binding: a local
// handle mapped to the component reference it invokes by default,
// plus the permissions available to that callout.
type CalloutDecl struct {
	Reference Reference              `json:"-" yaml:"-"`
	Allow     []permission.Permission `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny      []permission.Permission `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// BuiltinFunc implements a RunnerBuiltin Definition's payload.
type BuiltinFunc func(input json.RawMessage) (json.RawMessage, error)

// Definition is an immutable Component Definition (spec.md section
// 3): reference, optional input/output JSON Schemas, declared
// callouts, declared required permissions, runner kind and payload.
// Definitions are loaded once per Reference and shared across Rigs.
type Definition struct {
	Reference   Reference `json:"-" yaml:"-"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Doc         string    `json:"doc,omitempty" yaml:"doc,omitempty"`

	InputSchemaJSON  json.RawMessage `json:"-" yaml:"-"`
	OutputSchemaJSON json.RawMessage `json:"-" yaml:"-"`
	inputSchema      *jsonschema.Schema
	outputSchema     *jsonschema.Schema

	Callouts             map[string]CalloutDecl `json:"-" yaml:"-"`
	RequiredPermissions  []permission.Permission `json:"-" yaml:"-"`

	RunnerKind    RunnerKind      `json:"-" yaml:"-"`
	WasmModule    []byte          `json:"-" yaml:"-"`
	JSSource      string          `json:"-" yaml:"-"`
	FragmentRig   json.RawMessage `json:"-" yaml:"-"`
	Builtin       BuiltinFunc     `json:"-" yaml:"-"`

	// RunnerVersionTag participates in the cache fingerprint
	// (spec.md section 4.4) so that a runner upgrade invalidates
	// previously cached outputs.
	RunnerVersionTag string `json:"-" yaml:"-"`
}

// CompileSchemas parses InputSchemaJSON/OutputSchemaJSON (if present)
// into validators. Must be called once after a Definition is
// populated and before it is used to validate input/output.
func (d *Definition) CompileSchemas() error {
	if len(d.InputSchemaJSON) > 0 {
		s, err := compileSchema("input_schema.json", d.InputSchemaJSON)
		if err != nil {
			return err
		}
		d.inputSchema = s
	}
	if len(d.OutputSchemaJSON) > 0 {
		s, err := compileSchema("output_schema.json", d.OutputSchemaJSON)
		if err != nil {
			return err
		}
		d.outputSchema = s
	}
	return nil
}

func compileSchema(url string, raw json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// ValidateInput validates value (already decoded to generic JSON)
// against the component's input schema, if any. A Definition with no
// input schema accepts anything.
func (d *Definition) ValidateInput(value interface{}) error {
	if d.inputSchema == nil {
		return nil
	}
	return d.inputSchema.Validate(value)
}

// ValidateOutput validates value against the component's output
// schema, if any.
func (d *Definition) ValidateOutput(value interface{}) error {
	if d.outputSchema == nil {
		return nil
	}
	return d.outputSchema.Validate(value)
}
