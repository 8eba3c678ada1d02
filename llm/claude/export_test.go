package claude

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// Export convert functions for testing
var (
	ConvertTool              = convertTool
	ConvertParameterToSchema = convertParameterToSchema
	ConvertInputs            = convertInputs
)

type JSONSchema = jsonSchema

// Export for testing
type APIClient = apiClient

// NewSessionWithAPIClient creates a new session with a custom API client for testing
func NewSessionWithAPIClient(client apiClient, model string, tools []anthropic.ToolUnionParam) *Session {
	return &Session{
		apiClient:    client,
		defaultModel: model,
		tools:        tools,
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}
}

// Messages returns the session history for testing
func (s *Session) Messages() []anthropic.MessageParam {
	return s.messages
}
