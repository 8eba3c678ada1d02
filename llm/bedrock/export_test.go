package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/y-murata/kasa"
)

var (
	ConvertTool             = convertTool
	ConvertInputs           = convertInputs
	ConvertFunctionResponse = convertFunctionResponse
)

type APIClient = apiClient

// NewSessionWithAPIClient creates a session with a custom API client for testing
func NewSessionWithAPIClient(client apiClient, modelID string, tools []kasa.Tool) *Session {
	var toolConfig *types.ToolConfiguration
	if len(tools) > 0 {
		bedrockTools := make([]types.Tool, len(tools))
		for i, tool := range tools {
			bedrockTools[i] = convertTool(tool)
		}
		toolConfig = &types.ToolConfiguration{Tools: bedrockTools}
	}

	return &Session{
		apiClient:  client,
		modelID:    modelID,
		toolConfig: toolConfig,
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}
}

// Messages returns the session history for testing
func (s *Session) Messages() []types.Message {
	return s.messages
}
