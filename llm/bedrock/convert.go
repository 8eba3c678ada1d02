package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/y-murata/kasa"
)

// convertTool converts kasa.Tool to a Bedrock tool specification.
// The input schema is passed as a smithy JSON document.
func convertTool(tool kasa.Tool) types.Tool {
	spec := tool.Spec()

	toolSpec := types.ToolSpecification{
		Name: aws.String(spec.Name),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(spec.ToSchemaMap()),
		},
	}

	// Bedrock rejects an empty description string, omit it instead.
	if spec.Description != "" {
		toolSpec.Description = aws.String(spec.Description)
	}

	return &types.ToolMemberToolSpec{Value: toolSpec}
}
