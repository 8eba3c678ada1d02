package openai

import (
	"github.com/sashabaranov/go-openai"

	"github.com/y-murata/kasa"
)

// convertTool converts kasa.Tool to openai.Tool. The input schema is
// the shared JSON Schema map, so every declared parameter survives the
// conversion.
func convertTool(tool kasa.Tool) openai.Tool {
	spec := tool.Spec()

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.ToSchemaMap(),
		},
	}
}
