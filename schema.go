package kasa

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToSchemaMap converts a ToolSpec into a JSON Schema document as a plain
// map. This is the base representation shared by the provider adapters;
// provider-specific tweaks happen in each llm package.
func (s *ToolSpec) ToSchemaMap() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	for name, param := range s.Parameters {
		properties[name] = parameterToSchemaMap(param)
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}

	return schema
}

func parameterToSchemaMap(p *Parameter) map[string]any {
	schema := map[string]any{
		"type": string(p.Type),
	}

	if p.Description != "" {
		schema["description"] = p.Description
	}
	if p.Title != "" {
		schema["title"] = p.Title
	}

	if p.Type == TypeObject && p.Properties != nil {
		props := make(map[string]any, len(p.Properties))
		for name, prop := range p.Properties {
			props[name] = parameterToSchemaMap(prop)
		}
		schema["properties"] = props
		if len(p.Required) > 0 {
			schema["required"] = p.Required
		}
	}

	if p.Type == TypeArray && p.Items != nil {
		schema["items"] = parameterToSchemaMap(p.Items)
	}

	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		schema["enum"] = enum
	}

	if p.Default != nil {
		schema["default"] = p.Default
	}

	return schema
}

// argValidator validates model-supplied arguments against the declared
// input schema of a tool before the tool runs. Violations are fed back
// to the model as tool errors, not surfaced to the caller.
type argValidator struct {
	schema *jsonschema.Schema
}

func newArgValidator(spec *ToolSpec) (*argValidator, error) {
	raw, err := json.Marshal(spec.ToSchemaMap())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema", goerr.V("tool", spec.Name))
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidSchema, "failed to parse input schema", goerr.V("tool", spec.Name), goerr.V("cause", err))
	}

	url := "mem://tools/" + spec.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, goerr.Wrap(ErrInvalidSchema, "failed to add schema resource", goerr.V("tool", spec.Name), goerr.V("cause", err))
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidSchema, "failed to compile input schema", goerr.V("tool", spec.Name), goerr.V("cause", err))
	}

	return &argValidator{schema: schema}, nil
}

func (v *argValidator) validate(args map[string]any) error {
	// Round trip through JSON so that argument values have the value
	// kinds the validator expects, regardless of how the provider SDK
	// decoded them.
	raw, err := json.Marshal(args)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal arguments")
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return goerr.Wrap(err, "failed to parse arguments")
	}

	if err := v.schema.Validate(value); err != nil {
		return goerr.Wrap(ErrInvalidParameter, "arguments do not match input schema", goerr.V("cause", err))
	}
	return nil
}
