package kasa

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// ToolSpec is the specification of a tool as declared to the LLM.
type ToolSpec struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description is a human-readable description of what the tool does.
	Description string

	// Parameters defines the input parameters that the tool accepts,
	// keyed by parameter name.
	Parameters map[string]*Parameter

	// Required is the list of required parameter names.
	Required []string
}

// Validate validates the tool specification.
func (s *ToolSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("tool", s.Name))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidTool, "name is required")
	}

	for name, param := range s.Parameters {
		if err := param.Validate(); err != nil {
			return eb.Wrap(err, "invalid parameter", goerr.V("parameter", name))
		}
	}

	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return eb.Wrap(ErrInvalidTool, "required parameter not found", goerr.V("parameter", req))
		}
	}

	return nil
}

// ParameterType is the type of a parameter.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeInteger ParameterType = "integer"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

func (t ParameterType) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// Parameter is a parameter of a tool.
type Parameter struct {
	// Title is the user-friendly name of the parameter. Optional.
	Title string

	// Type is the type of the parameter. Required.
	Type ParameterType

	// Description explains the purpose and expected format of the
	// parameter.
	Description string

	// Required is the list of required field names when Type is Object.
	Required []string

	// Enum is the list of allowed values for the parameter.
	Enum []string

	// Properties is the structure of the parameter when Type is Object.
	Properties map[string]*Parameter

	// Items is the element type when Type is Array.
	Items *Parameter

	// Default value used when the parameter is omitted.
	Default any
}

// Validate validates the parameter.
func (p *Parameter) Validate() error {
	eb := goerr.NewBuilder(goerr.V("type", string(p.Type)))

	if p.Type == "" {
		return eb.Wrap(ErrInvalidParameter, "type is required")
	}

	if p.Type == TypeObject {
		if p.Properties == nil {
			return eb.Wrap(ErrInvalidParameter, "properties is required for object type")
		}
		for _, prop := range p.Properties {
			if err := prop.Validate(); err != nil {
				return eb.Wrap(ErrInvalidParameter, "invalid property")
			}
		}
		for _, req := range p.Required {
			if _, ok := p.Properties[req]; !ok {
				return eb.Wrap(ErrInvalidParameter, "required field not found in properties", goerr.V("field", req))
			}
		}
	}

	if p.Type == TypeArray && p.Items == nil {
		return eb.Wrap(ErrInvalidParameter, "items is required for array type")
	}
	if p.Items != nil {
		if err := p.Items.Validate(); err != nil {
			return eb.Wrap(ErrInvalidParameter, "invalid items")
		}
	}

	return nil
}

// Tool is specification and execution of an action that can be called by
// the LLM.
type Tool interface {
	// Spec returns the specification of the tool. It's called when
	// starting a chat session to declare the tool to the LLM.
	Spec() *ToolSpec

	// Run executes the tool. An error returned here does not abort the
	// order; it is delivered to the LLM as the tool result so the model
	// can react to the failure.
	Run(ctx context.Context, args map[string]any) (map[string]any, error)
}

// ToolSet is a set of tools resolved at runtime, such as the tools
// exposed by an MCP server. Specs may perform I/O and should cache its
// result; the agent fetches it once per order.
type ToolSet interface {
	Specs(ctx context.Context) ([]*ToolSpec, error)
	Run(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}
