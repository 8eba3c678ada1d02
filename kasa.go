// Package kasa is a small agent framework that bridges natural language
// queries to MCP tool calls through an LLM. The LLM decides which tools
// to invoke; kasa executes them and feeds the results back to the model
// until it produces a final answer.
package kasa

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Agent is the core structure of the package. It drives the conversation
// loop against one LLM session and a fixed set of tools.
type Agent struct {
	llm LLMClient

	loopLimit int

	tools    []Tool
	toolSets []ToolSet

	msgCallback  MsgCallback
	toolCallback ToolCallback
	errCallback  ErrCallback

	logger *slog.Logger

	// session and registry are created on the first Order call and
	// reused for subsequent orders so the conversation history carries
	// over between user turns.
	session  Session
	registry map[string]*registeredTool
}

// DefaultLoopLimit is the maximum number of generate-and-execute rounds
// per order unless overridden by WithLoopLimit.
const DefaultLoopLimit = 16

// MsgCallback is called for every text message generated by the LLM.
type MsgCallback func(ctx context.Context, msg string) error

// ToolCallback is called just before executing a tool.
type ToolCallback func(ctx context.Context, call FunctionCall) error

// ErrCallback is called when a tool execution fails. Returning a non-nil
// error aborts the order; returning nil feeds the failure back to the
// LLM and continues.
type ErrCallback func(ctx context.Context, err error, call FunctionCall) error

func defaultMsgCallback(_ context.Context, _ string) error { return nil }
func defaultToolCallback(_ context.Context, _ FunctionCall) error {
	return nil
}
func defaultErrCallback(_ context.Context, _ error, _ FunctionCall) error {
	return nil
}

// New creates a new kasa agent.
func New(llmClient LLMClient, options ...Option) *Agent {
	a := &Agent{
		llm:          llmClient,
		loopLimit:    DefaultLoopLimit,
		msgCallback:  defaultMsgCallback,
		toolCallback: defaultToolCallback,
		errCallback:  defaultErrCallback,
		logger:       slog.New(slog.DiscardHandler),
	}

	for _, opt := range options {
		opt(a)
	}

	return a
}

// Option is the type for the options of the kasa agent.
type Option func(*Agent)

// WithLoopLimit sets the maximum number of loops per order (one loop is
// asking the LLM and executing the requested tools).
func WithLoopLimit(loopLimit int) Option {
	return func(a *Agent) {
		a.loopLimit = loopLimit
	}
}

// WithTools sets the tools for the agent.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) {
		a.tools = append(a.tools, tools...)
	}
}

// WithToolSets sets the tool sets for the agent, such as an MCP client.
func WithToolSets(toolSets ...ToolSet) Option {
	return func(a *Agent) {
		a.toolSets = append(a.toolSets, toolSets...)
	}
}

// WithMsgCallback sets a callback for generated text messages.
// Usage:
//
//	kasa.WithMsgCallback(func(ctx context.Context, msg string) error {
//		println(msg)
//		return nil
//	})
func WithMsgCallback(callback MsgCallback) Option {
	return func(a *Agent) {
		a.msgCallback = callback
	}
}

// WithToolCallback sets a callback called just before a tool runs. If
// the callback returns an error, the order is aborted.
func WithToolCallback(callback ToolCallback) Option {
	return func(a *Agent) {
		a.toolCallback = callback
	}
}

// WithErrCallback sets a callback for tool execution errors.
func WithErrCallback(callback ErrCallback) Option {
	return func(a *Agent) {
		a.errCallback = callback
	}
}

// WithLogger sets the logger for the agent. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// registeredTool pairs a tool with the compiled validator of its input
// schema. validator is nil when the schema could not be compiled; in
// that case arguments are passed through unvalidated.
type registeredTool struct {
	tool      Tool
	validator *argValidator
}

func (a *Agent) setup(ctx context.Context) error {
	if a.registry != nil {
		return nil
	}

	logger := LoggerFromContext(ctx)

	registry := map[string]*registeredTool{}
	register := func(tool Tool) error {
		spec := tool.Spec()
		if err := spec.Validate(); err != nil {
			return err
		}
		if _, ok := registry[spec.Name]; ok {
			return goerr.Wrap(ErrToolNameConflict, "tool name conflict", goerr.V("tool_name", spec.Name))
		}

		validator, err := newArgValidator(spec)
		if err != nil {
			// A schema that cannot be compiled disables validation for
			// this tool only; the tool itself stays available.
			logger.Warn("failed to compile input schema, skipping argument validation",
				"tool", spec.Name, "error", err)
		}

		registry[spec.Name] = &registeredTool{tool: tool, validator: validator}
		return nil
	}

	for _, tool := range a.tools {
		if err := register(tool); err != nil {
			return err
		}
	}

	for _, toolSet := range a.toolSets {
		specs, err := toolSet.Specs(ctx)
		if err != nil {
			return goerr.Wrap(err, "failed to get tool set specs")
		}
		for _, spec := range specs {
			if err := register(&toolWrapper{spec: spec, toolSet: toolSet}); err != nil {
				return err
			}
		}
	}

	toolList := make([]Tool, 0, len(registry))
	toolNames := make([]string, 0, len(registry))
	for _, rt := range registry {
		toolList = append(toolList, rt.tool)
		toolNames = append(toolNames, rt.tool.Spec().Name)
	}
	logger.Debug("kasa tool list", "names", toolNames)

	ssn, err := a.llm.NewSession(ctx, toolList)
	if err != nil {
		return goerr.Wrap(err, "failed to create LLM session")
	}

	a.session = ssn
	a.registry = registry
	return nil
}

// Order runs one user turn to completion: the prompt is sent to the LLM,
// requested tool calls are executed in the order the model issued them,
// their results are fed back, and the loop repeats until the model
// returns a response with no tool calls. The final text of the turn is
// returned. The session history is kept, so subsequent Order calls
// continue the same conversation.
func (a *Agent) Order(ctx context.Context, prompt string) (string, error) {
	orderID := uuid.New().String()
	logger := a.logger.With("kasa.order_id", orderID)
	ctx = ctxWithLogger(ctx, logger)
	logger.Info("start order", "prompt", prompt)

	if err := a.setup(ctx); err != nil {
		return "", err
	}

	var lastTexts []string
	input := []Input{Text(prompt)}
	for i := 0; i < a.loopLimit; i++ {
		logger.Debug("order loop", "loop", i, "input", input)

		resp, err := a.session.Generate(ctx, input...)
		if err != nil {
			return "", goerr.Wrap(err, "failed to generate response")
		}
		input = nil

		for _, text := range resp.Texts {
			if err := a.msgCallback(ctx, text); err != nil {
				return "", goerr.Wrap(err, "failed to call msgCallback")
			}
		}
		if len(resp.Texts) > 0 {
			lastTexts = resp.Texts
		}

		if !resp.HasToolCalls() {
			return strings.Join(resp.Texts, "\n"), nil
		}

		results, err := a.executeToolCalls(ctx, resp.FunctionCalls)
		if err != nil {
			return "", err
		}
		for _, r := range results {
			input = append(input, r)
		}
	}

	// The last generated text is returned as a best-effort partial
	// answer alongside the error.
	return strings.Join(lastTexts, "\n"),
		goerr.Wrap(ErrLoopLimitExceeded, "order stopped", goerr.V("loop_limit", a.loopLimit))
}

// executeToolCalls runs every requested call in order and returns exactly
// one FunctionResponse per call. Failures become error responses instead
// of aborting, so the model can react to them.
func (a *Agent) executeToolCalls(ctx context.Context, calls []*FunctionCall) ([]FunctionResponse, error) {
	logger := LoggerFromContext(ctx)

	results := make([]FunctionResponse, 0, len(calls))
	for _, call := range calls {
		// On cancellation the remaining calls are not executed, but each
		// still gets a result so the call pairing stays consistent.
		if err := ctx.Err(); err != nil {
			results = append(results, FunctionResponse{
				ID:    call.ID,
				Name:  call.Name,
				Error: goerr.Wrap(err, call.Name+" was not executed"),
			})
			continue
		}

		logger.Debug("tool request", "tool", call.Name, "args", call.Arguments)

		if err := a.toolCallback(ctx, *call); err != nil {
			return nil, goerr.Wrap(err, "failed to call toolCallback")
		}

		rt, ok := a.registry[call.Name]
		if !ok {
			logger.Info("tool not found", "call", call)
			results = append(results, FunctionResponse{
				ID:    call.ID,
				Name:  call.Name,
				Error: goerr.New(call.Name+" is not found", goerr.V("call", call)),
			})
			continue
		}

		if rt.validator != nil {
			if err := rt.validator.validate(call.Arguments); err != nil {
				logger.Info("tool arguments rejected", "call", call, "error", err)
				results = append(results, FunctionResponse{
					ID:    call.ID,
					Name:  call.Name,
					Error: goerr.Wrap(err, call.Name+" arguments are invalid"),
				})
				continue
			}
		}

		result, err := rt.tool.Run(ctx, call.Arguments)
		if err != nil {
			if cbErr := a.errCallback(ctx, err, *call); cbErr != nil {
				return nil, goerr.Wrap(cbErr, "failed to call errCallback")
			}

			logger.Info("tool error", "call", call, "error", err)
			results = append(results, FunctionResponse{
				ID:    call.ID,
				Name:  call.Name,
				Error: goerr.Wrap(err, call.Name+" failed to run", goerr.V("call", call)),
			})
			continue
		}

		logger.Debug("tool result", "tool", call.Name, "result", result)

		// Normalize the result to a generic JSON-compatible structure
		// before handing it back to the provider adapter.
		if result != nil {
			marshaled, err := json.Marshal(result)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to marshal tool result")
			}
			var unmarshaled map[string]any
			if err := json.Unmarshal(marshaled, &unmarshaled); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal tool result")
			}
			result = unmarshaled
		}

		results = append(results, FunctionResponse{
			ID:   call.ID,
			Name: call.Name,
			Data: result,
		})
	}

	return results, nil
}

type toolWrapper struct {
	spec    *ToolSpec
	toolSet ToolSet
}

func (x *toolWrapper) Spec() *ToolSpec {
	return x.spec
}

func (x *toolWrapper) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return x.toolSet.Run(ctx, x.spec.Name, args)
}
