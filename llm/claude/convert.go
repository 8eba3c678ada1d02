package claude

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/y-murata/kasa"
)

func convertTool(tool kasa.Tool) anthropic.ToolUnionParam {
	spec := tool.Spec()
	schema := convertParametersToJSONSchema(spec.Parameters, spec.Required)

	tl := anthropic.ToolUnionParamOfTool(
		anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
			Required:   schema.Required,
		},
		spec.Name,
	)
	if tl.OfTool != nil {
		tl.OfTool.Description = anthropic.String(spec.Description)
	}
	return tl
}

type jsonSchema struct {
	Type        string                `json:"type"`
	Properties  map[string]jsonSchema `json:"properties,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Items       *jsonSchema           `json:"items,omitempty"`
	Default     any                   `json:"default,omitempty"`
	Enum        []any                 `json:"enum,omitempty"`
	Description string                `json:"description,omitempty"`
	Title       string                `json:"title,omitempty"`
}

func convertParametersToJSONSchema(params map[string]*kasa.Parameter, required []string) jsonSchema {
	properties := make(map[string]jsonSchema)

	for name, param := range params {
		properties[name] = convertParameterToSchema(param)
	}

	return jsonSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// convertParameterToSchema converts kasa.Parameter to Claude schema
func convertParameterToSchema(param *kasa.Parameter) jsonSchema {
	schema := jsonSchema{
		Type:        getClaudeType(param.Type),
		Description: param.Description,
		Title:       param.Title,
	}

	if len(param.Enum) > 0 {
		enum := make([]any, len(param.Enum))
		for i, v := range param.Enum {
			enum[i] = v
		}
		schema.Enum = enum
	}

	if param.Properties != nil {
		properties := make(map[string]jsonSchema)
		for name, prop := range param.Properties {
			properties[name] = convertParameterToSchema(prop)
		}
		schema.Properties = properties
		if len(param.Required) > 0 {
			schema.Required = param.Required
		}
	}

	if param.Items != nil {
		items := convertParameterToSchema(param.Items)
		schema.Items = &items
	}

	if param.Default != nil {
		schema.Default = param.Default
	}

	return schema
}

func getClaudeType(paramType kasa.ParameterType) string {
	switch paramType {
	case kasa.TypeString:
		return "string"
	case kasa.TypeNumber:
		return "number"
	case kasa.TypeInteger:
		return "integer"
	case kasa.TypeBoolean:
		return "boolean"
	case kasa.TypeArray:
		return "array"
	case kasa.TypeObject:
		return "object"
	default:
		return "string"
	}
}
