package openai

import (
	"github.com/sashabaranov/go-openai"
)

// Export convert functions for testing
var (
	ConvertTool   = convertTool
	ConvertInputs = convertInputs
)

// Export for testing
type APIClient = apiClient

// NewSessionWithAPIClient creates a new session with a custom API client for testing
func NewSessionWithAPIClient(client apiClient, model string, tools []openai.Tool) *Session {
	return &Session{
		apiClient:    client,
		defaultModel: model,
		tools:        tools,
	}
}

// Messages returns the session history for testing
func (s *Session) Messages() []openai.ChatCompletionMessage {
	return s.messages
}
