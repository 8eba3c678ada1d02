package kasa

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	mcpClientName    = "kasa"
	mcpClientVersion = "0.1.0"
)

// MCPClient is a session with one MCP server process. It implements
// ToolSet so the server's tools can be handed to an Agent directly, and
// additionally exposes the server's resources and prompts.
//
// A client holds at most one outstanding request; all methods block
// until the server responds or ctx is done.
type MCPClient struct {
	// For local MCP server via stdio
	path    string
	args    []string
	envVars []string

	// For remote MCP server via HTTP SSE
	baseURL string
	headers map[string]string

	client     *client.Client
	initResult *mcp.InitializeResult

	// specs is fetched once per session and read-only afterwards.
	specs     []*ToolSpec
	specsOnce sync.Once
	specsErr  error
}

// MCPStdioOption is the option for an MCP client talking to a local
// executable server via stdio.
type MCPStdioOption func(*MCPClient)

// WithEnvVars appends environment variables passed to the server process.
func WithEnvVars(envVars []string) MCPStdioOption {
	return func(m *MCPClient) {
		m.envVars = append(m.envVars, envVars...)
	}
}

// NewStdioMCP starts the MCP server executable at path as a subprocess
// and establishes a session over its stdio. The returned client is ready
// to use; connection failure is fatal for the session.
func NewStdioMCP(ctx context.Context, path string, args []string, options ...MCPStdioOption) (*MCPClient, error) {
	c := &MCPClient{
		path: path,
		args: args,
	}
	for _, option := range options {
		option(c)
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// MCPSSEOption is the option for an MCP client talking to a remote
// server via HTTP SSE.
type MCPSSEOption func(*MCPClient)

// WithHeaders sets the HTTP headers for the MCP client. It replaces the
// existing headers setting.
func WithHeaders(headers map[string]string) MCPSSEOption {
	return func(m *MCPClient) {
		m.headers = headers
	}
}

// NewSSEMCP establishes a session with a remote MCP server via HTTP SSE.
func NewSSEMCP(ctx context.Context, baseURL string, options ...MCPSSEOption) (*MCPClient, error) {
	c := &MCPClient{
		baseURL: baseURL,
		headers: map[string]string{},
	}
	for _, option := range options {
		option(c)
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MCPClient) connect(ctx context.Context) error {
	logger := LoggerFromContext(ctx)

	var tp transport.Interface
	if c.path != "" {
		tp = transport.NewStdio(c.path, c.envVars, c.args...)
	}
	if c.baseURL != "" {
		sse, err := transport.NewSSE(c.baseURL, transport.WithHeaders(c.headers))
		if err != nil {
			return goerr.Wrap(err, "failed to create SSE transport")
		}
		tp = sse
	}
	if tp == nil {
		return goerr.New("no transport")
	}

	c.client = client.NewClient(tp)

	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP client")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    mcpClientName,
		Version: mcpClientVersion,
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp

	logger.Debug("MCP session established",
		"server", resp.ServerInfo.Name, "version", resp.ServerInfo.Version)

	return nil
}

// Close terminates the session and the server subprocess.
func (c *MCPClient) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

// Specs implements ToolSet. The server's tool list is fetched on the
// first call and cached for the lifetime of the session.
func (c *MCPClient) Specs(ctx context.Context) ([]*ToolSpec, error) {
	c.specsOnce.Do(func() {
		c.specs, c.specsErr = c.fetchSpecs(ctx)
	})
	return c.specs, c.specsErr
}

func (c *MCPClient) fetchSpecs(ctx context.Context) ([]*ToolSpec, error) {
	if c.initResult == nil {
		return nil, goerr.Wrap(ErrNotConnected, "cannot list tools")
	}

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}

	specs := make([]*ToolSpec, len(resp.Tools))
	toolNames := make([]string, len(resp.Tools))
	for i, tool := range resp.Tools {
		parameters, err := inputSchemaToParameters(tool.InputSchema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert input schema", goerr.V("tool", tool.Name))
		}

		specs[i] = &ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  parameters,
			Required:    tool.InputSchema.Required,
		}
		toolNames[i] = tool.Name
	}

	LoggerFromContext(ctx).Debug("found MCP tools", "names", toolNames)

	return specs, nil
}

// Run implements ToolSet. A tool-level failure reported by the server
// (IsError result) is returned as an error so the agent can feed it back
// to the LLM.
func (c *MCPClient) Run(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if c.initResult == nil {
		return nil, goerr.Wrap(ErrNotConnected, "cannot call tool")
	}

	logger := LoggerFromContext(ctx)
	logger.Debug("call MCP tool", "name", name, "args", args)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool", goerr.V("tool", name))
	}

	if resp.IsError {
		return nil, goerr.New("tool execution failed", goerr.V("tool", name), goerr.V("message", contentToText(resp.Content)))
	}

	return mcpContentToMap(resp.Content), nil
}

// Resource is a read-only data item exposed by the MCP server.
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
}

// ListResources returns the resources exposed by the server.
func (c *MCPClient) ListResources(ctx context.Context) ([]Resource, error) {
	if c.initResult == nil {
		return nil, goerr.Wrap(ErrNotConnected, "cannot list resources")
	}

	resp, err := c.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list resources")
	}

	resources := make([]Resource, len(resp.Resources))
	for i, r := range resp.Resources {
		resources[i] = Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		}
	}
	return resources, nil
}

// ReadResource reads the resource at uri and returns its text content.
func (c *MCPClient) ReadResource(ctx context.Context, uri string) (string, error) {
	if c.initResult == nil {
		return "", goerr.Wrap(ErrNotConnected, "cannot read resource")
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	resp, err := c.client.ReadResource(ctx, req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read resource", goerr.V("uri", uri))
	}

	var sb strings.Builder
	for _, content := range resp.Contents {
		if text, ok := content.(mcp.TextResourceContents); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}

// PromptArgument describes one argument of a prompt template.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// Prompt is a prompt template exposed by the MCP server.
type Prompt struct {
	Name        string
	Description string
	Arguments   []PromptArgument
}

// PromptMessage is one message of an instantiated prompt.
type PromptMessage struct {
	Role string
	Text string
}

// PromptContent is a prompt template with its arguments filled in.
type PromptContent struct {
	Description string
	Messages    []PromptMessage
}

// ListPrompts returns the prompt templates exposed by the server.
func (c *MCPClient) ListPrompts(ctx context.Context) ([]Prompt, error) {
	if c.initResult == nil {
		return nil, goerr.Wrap(ErrNotConnected, "cannot list prompts")
	}

	resp, err := c.client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prompts")
	}

	prompts := make([]Prompt, len(resp.Prompts))
	for i, p := range resp.Prompts {
		args := make([]PromptArgument, len(p.Arguments))
		for j, arg := range p.Arguments {
			args[j] = PromptArgument{
				Name:        arg.Name,
				Description: arg.Description,
				Required:    arg.Required,
			}
		}
		prompts[i] = Prompt{
			Name:        p.Name,
			Description: p.Description,
			Arguments:   args,
		}
	}
	return prompts, nil
}

// GetPrompt instantiates the named prompt template with args.
func (c *MCPClient) GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptContent, error) {
	if c.initResult == nil {
		return nil, goerr.Wrap(ErrNotConnected, "cannot get prompt")
	}

	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.GetPrompt(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get prompt", goerr.V("prompt", name))
	}

	messages := make([]PromptMessage, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		if text, ok := msg.Content.(mcp.TextContent); ok {
			messages = append(messages, PromptMessage{
				Role: string(msg.Role),
				Text: text.Text,
			})
		}
	}

	return &PromptContent{
		Description: resp.Description,
		Messages:    messages,
	}, nil
}

func valueOrEmpty[T any](v any) T {
	var empty T
	if v == nil {
		return empty
	}
	if v, ok := v.(T); ok {
		return v
	}
	return empty
}

func inputSchemaToParameters(inputSchema mcp.ToolInputSchema) (map[string]*Parameter, error) {
	parameters := map[string]*Parameter{}

	for name, property := range inputSchema.Properties {
		prop, ok := property.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidSchema, "invalid property", goerr.V("property", property))
		}

		parameter, err := propertyToParameter(prop)
		if err != nil {
			return nil, err
		}
		parameters[name] = parameter
	}

	return parameters, nil
}

func propertyToParameter(prop map[string]any) (*Parameter, error) {
	var properties map[string]*Parameter
	var items *Parameter
	propType := ParameterType(valueOrEmpty[string](prop["type"]))

	if propType == TypeObject {
		properties = map[string]*Parameter{}
		for k, v := range valueOrEmpty[map[string]any](prop["properties"]) {
			nested, ok := v.(map[string]any)
			if !ok {
				return nil, goerr.Wrap(ErrInvalidSchema, "invalid nested property", goerr.V("property", v))
			}
			objParam, err := propertyToParameter(nested)
			if err != nil {
				return nil, err
			}
			properties[k] = objParam
		}
	}

	if propType == TypeArray {
		nested, ok := prop["items"].(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidSchema, "invalid items", goerr.V("property", prop))
		}
		v, err := propertyToParameter(nested)
		if err != nil {
			return nil, err
		}
		items = v
	}

	// A type outside the supported set degrades to string; the original
	// type is kept in the description so the model still sees it.
	description := valueOrEmpty[string](prop["description"])
	if !propType.valid() {
		if propType != "" {
			description = strings.TrimSpace(description + " (original type: " + string(propType) + ")")
		}
		propType = TypeString
	}

	var enum []string
	for _, e := range valueOrEmpty[[]any](prop["enum"]) {
		if s, ok := e.(string); ok {
			enum = append(enum, s)
		}
	}

	var required []string
	for _, r := range valueOrEmpty[[]any](prop["required"]) {
		if s, ok := r.(string); ok {
			required = append(required, s)
		}
	}

	return &Parameter{
		Type:        propType,
		Title:       valueOrEmpty[string](prop["title"]),
		Description: description,
		Required:    required,
		Enum:        enum,
		Properties:  properties,
		Items:       items,
		Default:     prop["default"],
	}, nil
}

func contentToText(contents []mcp.Content) string {
	var sb strings.Builder
	for _, c := range contents {
		if txt, ok := c.(mcp.TextContent); ok {
			sb.WriteString(txt.Text)
		}
	}
	return sb.String()
}

func mcpContentToMap(contents []mcp.Content) map[string]any {
	for _, c := range contents {
		txt, ok := c.(mcp.TextContent)
		if !ok {
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(txt.Text), &v); err == nil {
			if mapData, ok := v.(map[string]any); ok {
				return mapData
			}
			return map[string]any{"result": v}
		}

		return map[string]any{"result": txt.Text}
	}

	// No appropriate content found
	return map[string]any{}
}
