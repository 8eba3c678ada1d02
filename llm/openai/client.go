// Package openai provides the OpenAI function-calling adapter.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/y-murata/kasa"
)

// DefaultModel is used unless overridden by WithModel.
const DefaultModel = "gpt-4o-mini"

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float32

	// TopP controls diversity via nucleus sampling.
	TopP float32

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int
}

// Client is a client for the OpenAI API.
type Client struct {
	// client is the underlying OpenAI client.
	client *openai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// baseURL is a custom base URL for OpenAI-compatible endpoints.
	baseURL string

	// systemPrompt is prepended to every session as a system message.
	systemPrompt string

	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 1.0
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
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

// WithBaseURL sets a custom base URL, for compatible endpoints or
// proxies. If empty, the default OpenAI API endpoint is used.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// New creates a new client for the OpenAI API.
// It requires an API key and can be configured with additional options.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	client := &Client{
		defaultModel: DefaultModel,
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
		},
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.client = openai.NewClientWithConfig(config)

	return client, nil
}

// NewSession creates a new session for the OpenAI API.
// It converts the provided tools to OpenAI's tool format and initializes
// a new chat session.
func (c *Client) NewSession(ctx context.Context, tools []kasa.Tool) (kasa.Session, error) {
	openaiTools := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		openaiTools[i] = convertTool(tool)
	}

	var messages []openai.ChatCompletionMessage
	if c.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}

	session := &Session{
		apiClient:    &realAPIClient{client: c.client},
		defaultModel: c.defaultModel,
		tools:        openaiTools,
		messages:     messages,
		params:       c.params,
	}

	return session, nil
}

// Session is a session for the OpenAI chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	apiClient    apiClient
	defaultModel string
	tools        []openai.Tool

	// messages stores the conversation history in OpenAI native format.
	messages []openai.ChatCompletionMessage

	params generationParameters
}

// convertInputs converts kasa.Input to OpenAI messages.
func convertInputs(input ...kasa.Input) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage

	for _, in := range input {
		switch v := in.(type) {
		case kasa.Text:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: string(v),
			})

		case kasa.FunctionResponse:
			content, err := marshalFunctionResponse(v)
			if err != nil {
				return nil, err
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: v.ID,
			})

		default:
			return nil, goerr.Wrap(kasa.ErrInvalidParameter, "invalid input")
		}
	}

	return messages, nil
}

func marshalFunctionResponse(v kasa.FunctionResponse) (string, error) {
	if v.Error != nil {
		return fmt.Sprintf("Error: %+v", v.Error), nil
	}
	data, err := json.Marshal(v.Data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal function response")
	}
	return string(data), nil
}

// Generate processes the input and generates a response.
// It handles both text messages and function responses.
func (s *Session) Generate(ctx context.Context, input ...kasa.Input) (*kasa.Response, error) {
	newMessages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}
	s.messages = append(s.messages, newMessages...)

	req := openai.ChatCompletionRequest{
		Model:       s.defaultModel,
		Messages:    s.messages,
		Tools:       s.tools,
		Temperature: s.params.Temperature,
		TopP:        s.params.TopP,
		MaxTokens:   s.params.MaxTokens,
	}

	resp, err := s.apiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion")
	}

	if len(resp.Choices) == 0 {
		return &kasa.Response{}, nil
	}

	response := &kasa.Response{
		Texts:         make([]string, 0),
		FunctionCalls: make([]*kasa.FunctionCall, 0),
		InputToken:    resp.Usage.PromptTokens,
		OutputToken:   resp.Usage.CompletionTokens,
	}

	message := resp.Choices[0].Message
	if message.Content != "" {
		response.Texts = append(response.Texts, message.Content)
	}

	for _, toolCall := range message.ToolCalls {
		var args map[string]any
		if toolCall.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal tool arguments", goerr.V("tool", toolCall.Function.Name))
			}
		}

		response.FunctionCalls = append(response.FunctionCalls, &kasa.FunctionCall{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: args,
		})
	}

	// Add the assistant's response, including its tool calls, to the
	// history so the next turn's tool results correlate by ToolCallID.
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   message.Content,
		ToolCalls: message.ToolCalls,
	})

	return response, nil
}
