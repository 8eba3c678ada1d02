package kasa

import (
	"context"
	"log/slog"
)

// LLMClient is a client for one LLM service. Implementations live in
// llm/openai, llm/claude and llm/bedrock; the agent never depends on a
// concrete provider.
type LLMClient interface {
	// NewSession starts a new chat session with the given tools declared
	// to the model. The session owns the conversation history.
	NewSession(ctx context.Context, tools []Tool) (Session, error)
}

// Session is one conversation with an LLM. A session is not safe for
// concurrent use; the agent issues Generate calls strictly one at a time.
type Session interface {
	// Generate sends the given inputs as the next turn and returns the
	// model's response. The inputs and the response are appended to the
	// session history.
	Generate(ctx context.Context, input ...Input) (*Response, error)
}

// FunctionCall is a request from the LLM to invoke a tool. ID is assigned
// by the provider and must be echoed back in the corresponding
// FunctionResponse.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Response is a provider-neutral response of one Generate call.
// A response with a non-empty FunctionCalls is never a final answer,
// even if Texts is also populated.
type Response struct {
	Texts         []string
	FunctionCalls []*FunctionCall

	InputToken  int
	OutputToken int
}

// HasToolCalls reports whether the model requested any tool invocation.
func (r *Response) HasToolCalls() bool {
	return len(r.FunctionCalls) > 0
}

// Input is one item of the next turn sent to the LLM: either user text
// or the result of a previously requested tool call.
type Input interface {
	isInput() restrictedValue
	LogValue() slog.Value
}

type restrictedValue struct{}

// Text is a text input as prompt.
// Usage:
//
//	input := kasa.Text("What's the weather in Paris?")
type Text string

func (t Text) isInput() restrictedValue {
	return restrictedValue{}
}

func (t Text) LogValue() slog.Value {
	return slog.StringValue(string(t))
}

// FunctionResponse is the result of one tool call. Exactly one
// FunctionResponse is produced for every FunctionCall, in the order the
// calls were issued. When the tool failed, Error is set and Data is nil;
// the error text is delivered to the model instead of being dropped, so
// the request/response pairing never desynchronizes.
type FunctionResponse struct {
	ID    string
	Name  string
	Data  map[string]any
	Error error
}

func (f FunctionResponse) isInput() restrictedValue {
	return restrictedValue{}
}

func (f FunctionResponse) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", f.ID),
		slog.String("name", f.Name),
	}
	if f.Data != nil {
		attrs = append(attrs, slog.Any("data", f.Data))
	}
	if f.Error != nil {
		attrs = append(attrs, slog.String("error", f.Error.Error()))
	}
	return slog.GroupValue(attrs...)
}
