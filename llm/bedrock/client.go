// Package bedrock provides the AWS Bedrock Converse adapter. It speaks
// the provider-agnostic Converse API, so any Bedrock-hosted model with
// tool support can be used.
package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/m-mizutani/goerr/v2"

	"github.com/y-murata/kasa"
)

// DefaultModelID is used unless overridden by WithModelID.
const DefaultModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// apiClient is the interface for Bedrock runtime calls. It is satisfied
// by *bedrockruntime.Client and by test fakes.
type apiClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	Temperature float32
	TopP        float32
	MaxTokens   int32
}

// Client is a client for AWS Bedrock runtime.
type Client struct {
	client apiClient

	// modelID is the Bedrock model identifier used for Converse calls.
	modelID string

	// region overrides the AWS region from the default credential chain.
	region string

	// systemPrompt is sent as a system content block of every session.
	systemPrompt string

	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModelID sets the Bedrock model identifier.
// See default model in [DefaultModelID].
func WithModelID(modelID string) Option {
	return func(c *Client) {
		c.modelID = modelID
	}
}

// WithRegion sets the AWS region. If empty, the region from the default
// credential chain is used.
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = region
	}
}

// WithTemperature sets the temperature parameter for text generation.
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
// Default: 4096
func WithMaxTokens(maxTokens int32) Option {
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

// New creates a new client for AWS Bedrock. Credentials come from the
// default AWS credential chain (environment, shared config, SSO, IMDS).
func New(ctx context.Context, options ...Option) (*Client, error) {
	client := &Client{
		modelID: DefaultModelID,
		params: generationParameters{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   4096,
		},
	}

	for _, option := range options {
		option(client)
	}

	var cfgOpts []func(*awsconfig.LoadOptions) error
	if client.region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(client.region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load AWS configuration")
	}

	client.client = bedrockruntime.NewFromConfig(cfg)

	return client, nil
}

// NewSession creates a new session for the Bedrock Converse API.
// It converts the provided tools to Bedrock's tool configuration and
// initializes a new chat session.
func (c *Client) NewSession(ctx context.Context, tools []kasa.Tool) (kasa.Session, error) {
	var toolConfig *types.ToolConfiguration
	if len(tools) > 0 {
		bedrockTools := make([]types.Tool, len(tools))
		for i, tool := range tools {
			bedrockTools[i] = convertTool(tool)
		}
		toolConfig = &types.ToolConfiguration{
			Tools: bedrockTools,
		}
	}

	session := &Session{
		apiClient:    c.client,
		modelID:      c.modelID,
		systemPrompt: c.systemPrompt,
		toolConfig:   toolConfig,
		params:       c.params,
	}

	return session, nil
}

// Session is a session for the Bedrock Converse chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	apiClient    apiClient
	modelID      string
	systemPrompt string
	toolConfig   *types.ToolConfiguration

	// messages stores the conversation history.
	messages []types.Message

	params generationParameters
}

// convertInputs converts kasa.Input to Bedrock messages. Tool results
// are folded into one user message of toolResult blocks, as the
// Converse API requires.
func convertInputs(input ...kasa.Input) ([]types.Message, error) {
	var messages []types.Message
	var toolResults []types.ContentBlock

	for _, in := range input {
		switch v := in.(type) {
		case kasa.Text:
			messages = append(messages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: string(v)},
				},
			})

		case kasa.FunctionResponse:
			toolResults = append(toolResults, convertFunctionResponse(v))

		default:
			return nil, goerr.Wrap(kasa.ErrInvalidParameter, "invalid input")
		}
	}

	if len(toolResults) > 0 {
		messages = append(messages, types.Message{
			Role:    types.ConversationRoleUser,
			Content: toolResults,
		})
	}

	return messages, nil
}

func convertFunctionResponse(v kasa.FunctionResponse) types.ContentBlock {
	result := types.ToolResultBlock{
		ToolUseId: aws.String(v.ID),
		Status:    types.ToolResultStatusSuccess,
	}

	if v.Error != nil {
		result.Status = types.ToolResultStatusError
		result.Content = []types.ToolResultContentBlock{
			&types.ToolResultContentBlockMemberText{
				Value: fmt.Sprintf("Error: %+v", v.Error),
			},
		}
	} else {
		data := v.Data
		if data == nil {
			data = map[string]any{}
		}
		result.Content = []types.ToolResultContentBlock{
			&types.ToolResultContentBlockMemberJson{
				Value: document.NewLazyDocument(data),
			},
		}
	}

	return &types.ContentBlockMemberToolResult{Value: result}
}

// createRequest creates a Converse request with the current session state
func (s *Session) createRequest(messages []types.Message) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId:    aws.String(s.modelID),
		Messages:   messages,
		ToolConfig: s.toolConfig,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(s.params.MaxTokens),
			Temperature: aws.Float32(s.params.Temperature),
			TopP:        aws.Float32(s.params.TopP),
		},
	}

	if s.systemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: s.systemPrompt},
		}
	}

	return input
}

// processResponse converts a Converse output to kasa.Response
func processResponse(resp *bedrockruntime.ConverseOutput) (*kasa.Response, types.Message, error) {
	response := &kasa.Response{
		Texts:         make([]string, 0),
		FunctionCalls: make([]*kasa.FunctionCall, 0),
	}
	if resp.Usage != nil {
		response.InputToken = int(aws.ToInt32(resp.Usage.InputTokens))
		response.OutputToken = int(aws.ToInt32(resp.Usage.OutputTokens))
	}

	output, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, types.Message{}, goerr.New("unexpected converse output", goerr.V("output", resp.Output))
	}

	for _, content := range output.Value.Content {
		switch block := content.(type) {
		case *types.ContentBlockMemberText:
			response.Texts = append(response.Texts, block.Value)

		case *types.ContentBlockMemberToolUse:
			var args map[string]any
			if block.Value.Input != nil {
				if err := block.Value.Input.UnmarshalSmithyDocument(&args); err != nil {
					return nil, types.Message{}, goerr.Wrap(err, "failed to unmarshal tool use input", goerr.V("tool", aws.ToString(block.Value.Name)))
				}
			}

			response.FunctionCalls = append(response.FunctionCalls, &kasa.FunctionCall{
				ID:        aws.ToString(block.Value.ToolUseId),
				Name:      aws.ToString(block.Value.Name),
				Arguments: args,
			})
		}
	}

	return response, output.Value, nil
}

// Generate processes the input and generates a response.
// It handles both text messages and function responses.
func (s *Session) Generate(ctx context.Context, input ...kasa.Input) (*kasa.Response, error) {
	messages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}

	s.messages = append(s.messages, messages...)
	req := s.createRequest(s.messages)

	resp, err := s.apiClient.Converse(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to converse")
	}

	response, assistantMessage, err := processResponse(resp)
	if err != nil {
		return nil, err
	}

	// Add the assistant's message, including its toolUse blocks, to the
	// history so toolResult blocks correlate on the next turn.
	s.messages = append(s.messages, assistantMessage)

	return response, nil
}
