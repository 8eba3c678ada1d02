// Package claude provides the Anthropic tool-use adapter.
package claude

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"

	"github.com/y-murata/kasa"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float64

	// TopP controls diversity via nucleus sampling.
	TopP float64

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int64
}

// Client is a client for the Claude API.
type Client struct {
	// client is the underlying Claude client.
	client *anthropic.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// systemPrompt is sent as the system parameter of every session.
	systemPrompt string

	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// The model name should be a valid Claude model identifier.
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 1.0
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float64) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// WithSystemPrompt sets the system prompt for every session.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// New creates a new client for the Claude API.
// It requires an API key and can be configured with additional options.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	client := &Client{
		defaultModel: string(anthropic.ModelClaude3_5SonnetLatest),
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}

	for _, option := range options {
		option(client)
	}

	newClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.client = &newClient

	return client, nil
}

// NewSession creates a new session for the Claude API.
// It converts the provided tools to Claude's tool format and initializes
// a new chat session.
func (c *Client) NewSession(ctx context.Context, tools []kasa.Tool) (kasa.Session, error) {
	claudeTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		claudeTools[i] = convertTool(tool)
	}

	session := &Session{
		apiClient:    &realAPIClient{client: c.client},
		defaultModel: c.defaultModel,
		systemPrompt: c.systemPrompt,
		tools:        claudeTools,
		params:       c.params,
	}

	return session, nil
}

// Session is a session for the Claude chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	apiClient    apiClient
	defaultModel string
	systemPrompt string
	tools        []anthropic.ToolUnionParam

	// messages stores the conversation history.
	messages []anthropic.MessageParam

	params generationParameters
}

// convertInputs converts kasa.Input to Claude messages. Tool results are
// folded into one user message of tool_result blocks, as the Messages
// API requires.
func convertInputs(input ...kasa.Input) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam
	var toolResults []anthropic.ContentBlockParamUnion

	for _, in := range input {
		switch v := in.(type) {
		case kasa.Text:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(string(v)),
			))

		case kasa.FunctionResponse:
			content, isError, err := marshalFunctionResponse(v)
			if err != nil {
				return nil, err
			}
			toolResults = append(toolResults, anthropic.NewToolResultBlock(v.ID, content, isError))

		default:
			return nil, goerr.Wrap(kasa.ErrInvalidParameter, "invalid input")
		}
	}

	if len(toolResults) > 0 {
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	return messages, nil
}

func marshalFunctionResponse(v kasa.FunctionResponse) (string, bool, error) {
	if v.Error != nil {
		return fmt.Sprintf("Error: %+v", v.Error), true, nil
	}
	data, err := json.Marshal(v.Data)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to marshal function response")
	}
	return string(data), false, nil
}

// createRequest creates a message request with the current session state
func (s *Session) createRequest(messages []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.defaultModel),
		MaxTokens:   s.params.MaxTokens,
		Temperature: anthropic.Float(s.params.Temperature),
		TopP:        anthropic.Float(s.params.TopP),
		Tools:       s.tools,
		Messages:    messages,
	}

	if s.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: s.systemPrompt},
		}
	}

	return params
}

// processResponse converts a Claude response to kasa.Response
func processResponse(resp *anthropic.Message) (*kasa.Response, error) {
	response := &kasa.Response{
		Texts:         make([]string, 0),
		FunctionCalls: make([]*kasa.FunctionCall, 0),
		InputToken:    int(resp.Usage.InputTokens),
		OutputToken:   int(resp.Usage.OutputTokens),
	}

	for _, content := range resp.Content {
		textBlock := content.AsText()
		if textBlock.Type == "text" {
			response.Texts = append(response.Texts, textBlock.Text)
		}

		toolUseBlock := content.AsToolUse()
		if toolUseBlock.Type == "tool_use" {
			var args map[string]any
			if err := json.Unmarshal([]byte(toolUseBlock.Input), &args); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal function arguments", goerr.V("tool", toolUseBlock.Name))
			}

			response.FunctionCalls = append(response.FunctionCalls, &kasa.FunctionCall{
				ID:        toolUseBlock.ID,
				Name:      toolUseBlock.Name,
				Arguments: args,
			})
		}
	}

	return response, nil
}

// Generate processes the input and generates a response.
// It handles both text messages and function responses.
func (s *Session) Generate(ctx context.Context, input ...kasa.Input) (*kasa.Response, error) {
	messages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}

	s.messages = append(s.messages, messages...)
	params := s.createRequest(s.messages)

	resp, err := s.apiClient.MessagesNew(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message")
	}

	// Add the assistant's response, including its tool_use blocks, to
	// the history so tool_result blocks correlate on the next turn.
	s.messages = append(s.messages, resp.ToParam())

	return processResponse(resp)
}
