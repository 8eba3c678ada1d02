package kasa_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/y-murata/kasa"
)

type mockLLMClient struct {
	newSessionCount int
	session         *mockSession
}

func (c *mockLLMClient) NewSession(ctx context.Context, tools []kasa.Tool) (kasa.Session, error) {
	c.newSessionCount++
	c.session.tools = tools
	return c.session, nil
}

type mockSession struct {
	tools    []kasa.Tool
	history  [][]kasa.Input
	generate func(loop int, input ...kasa.Input) (*kasa.Response, error)
}

func (s *mockSession) Generate(ctx context.Context, input ...kasa.Input) (*kasa.Response, error) {
	s.history = append(s.history, input)
	return s.generate(len(s.history)-1, input...)
}

type mockTool struct {
	spec *kasa.ToolSpec
	run  func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func (t *mockTool) Spec() *kasa.ToolSpec { return t.spec }
func (t *mockTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return t.run(ctx, args)
}

func weatherSpec() *kasa.ToolSpec {
	return &kasa.ToolSpec{
		Name:        "get_weather",
		Description: "Get current weather for a city",
		Parameters: map[string]*kasa.Parameter{
			"city": {
				Type:        kasa.TypeString,
				Description: "City name",
			},
		},
		Required: []string{"city"},
	}
}

func finalText(texts ...string) *kasa.Response {
	return &kasa.Response{Texts: texts}
}

func TestOrderText(t *testing.T) {
	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			return finalText("The weather is sunny."), nil
		},
	}
	client := &mockLLMClient{session: session}

	var messages []string
	agent := kasa.New(client, kasa.WithMsgCallback(func(ctx context.Context, msg string) error {
		messages = append(messages, msg)
		return nil
	}))

	answer := gt.R1(agent.Order(context.Background(), "How's the weather?")).NoError(t)
	gt.Equal(t, answer, "The weather is sunny.")
	gt.Array(t, messages).Equal([]string{"The weather is sunny."})
	gt.Array(t, session.history).Length(1)
	gt.Equal(t, session.history[0][0], kasa.Input(kasa.Text("How's the weather?")))
}

func TestOrderToolFlow(t *testing.T) {
	var ranArgs map[string]any
	tool := &mockTool{
		spec: weatherSpec(),
		run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ranArgs = args
			return map[string]any{"temperature": 68, "conditions": "Clear"}, nil
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			switch loop {
			case 0:
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "tokyo"}},
					},
				}, nil
			default:
				return finalText("It is 68°F and clear in Tokyo."), nil
			}
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithTools(tool))
	answer := gt.R1(agent.Order(context.Background(), "Weather in tokyo?")).NoError(t)
	gt.Equal(t, answer, "It is 68°F and clear in Tokyo.")
	gt.Equal(t, ranArgs, map[string]any{"city": "tokyo"})

	// tools are declared to the session
	gt.Array(t, session.tools).Length(1)

	// the second turn carries the tool result, paired by call ID
	gt.Array(t, session.history).Length(2)
	resp := gt.Cast[kasa.FunctionResponse](t, session.history[1][0])
	gt.Equal(t, resp.ID, "call_1")
	gt.Equal(t, resp.Name, "get_weather")
	gt.NoError(t, resp.Error)
	gt.Equal(t, resp.Data["temperature"], any(float64(68)))
}

func TestOrderToolOrdering(t *testing.T) {
	var ran []string
	tool := &mockTool{
		spec: weatherSpec(),
		run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			city, _ := args["city"].(string)
			ran = append(ran, city)
			return map[string]any{"city": city}, nil
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			if loop == 0 {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "paris"}},
						{ID: "call_2", Name: "get_weather", Arguments: map[string]any{"city": "london"}},
					},
				}, nil
			}
			return finalText("Paris is warmer than London."), nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithTools(tool))
	gt.R1(agent.Order(context.Background(), "Compare paris and london")).NoError(t)

	// executed in issue order, one response per call
	gt.Array(t, ran).Equal([]string{"paris", "london"})
	gt.Array(t, session.history[1]).Length(2)
	gt.Equal(t, gt.Cast[kasa.FunctionResponse](t, session.history[1][0]).ID, "call_1")
	gt.Equal(t, gt.Cast[kasa.FunctionResponse](t, session.history[1][1]).ID, "call_2")
}

func TestOrderUnknownTool(t *testing.T) {
	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			if loop == 0 {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "no_such_tool", Arguments: map[string]any{}},
					},
				}, nil
			}
			return finalText("I could not use that tool."), nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client)
	answer := gt.R1(agent.Order(context.Background(), "do something")).NoError(t)
	gt.Equal(t, answer, "I could not use that tool.")

	// the failure is fed back to the model, not surfaced to the caller
	resp := gt.Cast[kasa.FunctionResponse](t, session.history[1][0])
	gt.Equal(t, resp.ID, "call_1")
	gt.Error(t, resp.Error)
}

func TestOrderToolError(t *testing.T) {
	tool := &mockTool{
		spec: weatherSpec(),
		run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, errors.New("unknown city 'atlantis'")
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			if loop == 0 {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "atlantis"}},
					},
				}, nil
			}
			return finalText("That city is not available."), nil
		},
	}
	client := &mockLLMClient{session: session}

	t.Run("error is fed back to the model", func(t *testing.T) {
		var called int
		agent := kasa.New(client,
			kasa.WithTools(tool),
			kasa.WithErrCallback(func(ctx context.Context, err error, call kasa.FunctionCall) error {
				called++
				gt.Equal(t, call.Name, "get_weather")
				return nil
			}),
		)

		answer := gt.R1(agent.Order(context.Background(), "Weather in atlantis?")).NoError(t)
		gt.Equal(t, answer, "That city is not available.")
		gt.Equal(t, called, 1)

		resp := gt.Cast[kasa.FunctionResponse](t, session.history[1][0])
		gt.Error(t, resp.Error)
		gt.Value(t, resp.Data).Nil()
	})

	t.Run("errCallback can abort the order", func(t *testing.T) {
		abort := errors.New("abort")
		session := &mockSession{
			generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "atlantis"}},
					},
				}, nil
			},
		}
		agent := kasa.New(&mockLLMClient{session: session},
			kasa.WithTools(tool),
			kasa.WithErrCallback(func(ctx context.Context, err error, call kasa.FunctionCall) error {
				return abort
			}),
		)

		_, err := agent.Order(context.Background(), "Weather in atlantis?")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, abort))
	})
}

func TestOrderArgumentValidation(t *testing.T) {
	var ran int
	tool := &mockTool{
		spec: weatherSpec(),
		run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ran++
			return map[string]any{}, nil
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			if loop == 0 {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": 123}},
					},
				}, nil
			}
			return finalText("done"), nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithTools(tool))
	gt.R1(agent.Order(context.Background(), "weather?")).NoError(t)

	// invalid arguments never reach the tool
	gt.Equal(t, ran, 0)
	resp := gt.Cast[kasa.FunctionResponse](t, session.history[1][0])
	gt.Error(t, resp.Error)
	gt.True(t, errors.Is(resp.Error, kasa.ErrInvalidParameter))
}

func TestOrderLoopLimit(t *testing.T) {
	tool := &mockTool{
		spec: weatherSpec(),
		run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			return &kasa.Response{
				Texts: []string{"still working on it"},
				FunctionCalls: []*kasa.FunctionCall{
					{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "tokyo"}},
				},
			}, nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithTools(tool), kasa.WithLoopLimit(3))
	partial, err := agent.Order(context.Background(), "weather?")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, kasa.ErrLoopLimitExceeded))
	gt.Array(t, session.history).Length(3)

	// the last generated text survives as a partial answer
	gt.Equal(t, partial, "still working on it")
}

func TestOrderCancelDuringTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran []string
	tool := &mockTool{
		spec: weatherSpec(),
		run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			city, _ := args["city"].(string)
			ran = append(ran, city)
			cancel()
			return map[string]any{"city": city}, nil
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			if loop == 0 {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "paris"}},
						{ID: "call_2", Name: "get_weather", Arguments: map[string]any{"city": "london"}},
					},
				}, nil
			}
			return nil, ctx.Err()
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithTools(tool))
	_, err := agent.Order(ctx, "Compare paris and london")
	gt.Error(t, err)

	// the second call is skipped but still produces a paired result
	gt.Array(t, ran).Equal([]string{"paris"})
	gt.Array(t, session.history[1]).Length(2)
	second := gt.Cast[kasa.FunctionResponse](t, session.history[1][1])
	gt.Equal(t, second.ID, "call_2")
	gt.Error(t, second.Error)
}

func TestOrderGenerateError(t *testing.T) {
	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			return nil, errors.New("rate limited")
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client)
	_, err := agent.Order(context.Background(), "hello")
	gt.Error(t, err)
}

func TestOrderToolNameConflict(t *testing.T) {
	run := func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, nil
	}
	tool1 := &mockTool{spec: weatherSpec(), run: run}
	tool2 := &mockTool{spec: weatherSpec(), run: run}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			return finalText("ok"), nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithTools(tool1, tool2))
	_, err := agent.Order(context.Background(), "hello")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, kasa.ErrToolNameConflict))
}

func TestOrderSessionContinues(t *testing.T) {
	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			return finalText("ok"), nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client)
	gt.R1(agent.Order(context.Background(), "first")).NoError(t)
	gt.R1(agent.Order(context.Background(), "second")).NoError(t)

	// one session carries the whole conversation
	gt.Equal(t, client.newSessionCount, 1)
	gt.Array(t, session.history).Length(2)
}

type mockToolSet struct {
	specs []*kasa.ToolSpec
	ran   []string
}

func (s *mockToolSet) Specs(ctx context.Context) ([]*kasa.ToolSpec, error) {
	return s.specs, nil
}

func (s *mockToolSet) Run(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	s.ran = append(s.ran, name)
	return map[string]any{"result": "ok"}, nil
}

func TestOrderWithToolSet(t *testing.T) {
	toolSet := &mockToolSet{
		specs: []*kasa.ToolSpec{
			weatherSpec(),
			{Name: "get_temperature_summary", Description: "Summary of all cities"},
		},
	}

	session := &mockSession{
		generate: func(loop int, input ...kasa.Input) (*kasa.Response, error) {
			if loop == 0 {
				return &kasa.Response{
					FunctionCalls: []*kasa.FunctionCall{
						{ID: "call_1", Name: "get_temperature_summary", Arguments: map[string]any{}},
					},
				}, nil
			}
			return finalText("done"), nil
		},
	}
	client := &mockLLMClient{session: session}

	agent := kasa.New(client, kasa.WithToolSets(toolSet))
	gt.R1(agent.Order(context.Background(), "summary please")).NoError(t)

	gt.Array(t, session.tools).Length(2)
	gt.Array(t, toolSet.ran).Equal([]string{"get_temperature_summary"})

	resp := gt.Cast[kasa.FunctionResponse](t, session.history[1][0])
	gt.NoError(t, resp.Error)
	gt.Equal(t, resp.Data, map[string]any{"result": "ok"})
}
