package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/y-murata/kasa"
	"github.com/y-murata/kasa/llm/bedrock"
	"github.com/y-murata/kasa/llm/claude"
	"github.com/y-murata/kasa/llm/openai"
)

const systemPrompt = "You are a helpful weather assistant. You have access to weather " +
	"tools that can provide current weather information for New York, " +
	"London, Tokyo, and Paris. Use the tools to answer user questions " +
	"about weather. Be concise and friendly."

func chatCommand() *cli.Command {
	var (
		provider     string
		model        string
		openAIKey    string
		anthropicKey string
		awsRegion    string
		serverPath   string
		debug        bool
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "chat with the weather agent in natural language",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "provider",
				Usage:       "LLM provider: openai, anthropic or bedrock",
				Value:       "openai",
				Sources:     cli.EnvVars("LLM_PROVIDER"),
				Destination: &provider,
			},
			&cli.StringFlag{
				Name:        "model",
				Usage:       "model identifier, provider default if empty",
				Sources:     cli.EnvVars("LLM_MODEL", "BEDROCK_MODEL_ID"),
				Destination: &model,
			},
			&cli.StringFlag{
				Name:        "openai-api-key",
				Usage:       "API key for OpenAI",
				Sources:     cli.EnvVars("OPENAI_API_KEY"),
				Destination: &openAIKey,
			},
			&cli.StringFlag{
				Name:        "anthropic-api-key",
				Usage:       "API key for Anthropic",
				Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
				Destination: &anthropicKey,
			},
			&cli.StringFlag{
				Name:        "aws-region",
				Usage:       "AWS region for Bedrock",
				Sources:     cli.EnvVars("AWS_REGION"),
				Destination: &awsRegion,
			},
			&cli.StringFlag{
				Name:        "server",
				Usage:       "path to the weather MCP server executable, defaults to this binary",
				Destination: &serverPath,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "enable debug logging",
				Destination: &debug,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			llmClient, err := newLLMClient(ctx, provider, model, openAIKey, anthropicKey, awsRegion)
			if err != nil {
				return err
			}

			path := serverPath
			var args []string
			if path == "" {
				self, err := os.Executable()
				if err != nil {
					return goerr.Wrap(err, "failed to resolve own executable")
				}
				path = self
				args = []string{"serve"}
			}

			mcpClient, err := kasa.NewStdioMCP(ctx, path, args)
			if err != nil {
				return err
			}
			defer func() {
				if err := mcpClient.Close(); err != nil {
					logger.Warn("failed to close MCP client", "error", err)
				}
			}()

			agent := kasa.New(llmClient,
				kasa.WithToolSets(mcpClient),
				kasa.WithLogger(logger),
				kasa.WithToolCallback(func(ctx context.Context, call kasa.FunctionCall) error {
					fmt.Printf("\nCalling tool: %s with args: %v\n\n", call.Name, call.Arguments)
					return nil
				}),
			)

			fmt.Printf("Weather chat (%s)\n", strings.ToLower(provider))
			fmt.Println("Ask me anything about the weather in natural language!")
			fmt.Println("Type 'quit' to exit")
			fmt.Println()

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}

				query := strings.TrimSpace(scanner.Text())
				if query == "" {
					continue
				}
				switch strings.ToLower(query) {
				case "quit", "exit", "q":
					fmt.Println("\nGoodbye!")
					return nil
				}

				answer, err := agent.Order(ctx, query)
				if err != nil {
					fmt.Printf("Error: %v\n\n", err)
					continue
				}
				fmt.Printf("Assistant: %s\n\n", answer)
			}

			return scanner.Err()
		},
	}
}

func newLLMClient(ctx context.Context, provider, model, openAIKey, anthropicKey, awsRegion string) (kasa.LLMClient, error) {
	switch strings.ToLower(provider) {
	case "openai":
		if openAIKey == "" {
			return nil, goerr.New("OPENAI_API_KEY is not set")
		}
		opts := []openai.Option{openai.WithSystemPrompt(systemPrompt)}
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		return openai.New(ctx, openAIKey, opts...)

	case "anthropic":
		if anthropicKey == "" {
			return nil, goerr.New("ANTHROPIC_API_KEY is not set")
		}
		opts := []claude.Option{claude.WithSystemPrompt(systemPrompt)}
		if model != "" {
			opts = append(opts, claude.WithModel(model))
		}
		return claude.New(ctx, anthropicKey, opts...)

	case "bedrock":
		opts := []bedrock.Option{bedrock.WithSystemPrompt(systemPrompt)}
		if model != "" {
			opts = append(opts, bedrock.WithModelID(model))
		}
		if awsRegion != "" {
			opts = append(opts, bedrock.WithRegion(awsRegion))
		}
		return bedrock.New(ctx, opts...)

	default:
		return nil, goerr.New("unknown provider, use openai, anthropic or bedrock", goerr.V("provider", provider))
	}
}
