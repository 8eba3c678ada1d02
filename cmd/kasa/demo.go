package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/y-murata/kasa"
)

func demoCommand() *cli.Command {
	var serverPath string

	return &cli.Command{
		Name:  "demo",
		Usage: "walk through the MCP protocol against the weather server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "path to the weather MCP server executable, defaults to this binary",
				Destination: &serverPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
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

			client, err := kasa.NewStdioMCP(ctx, path, args)
			if err != nil {
				return err
			}
			defer client.Close()

			return runDemo(ctx, client)
		},
	}
}

func runDemo(ctx context.Context, client *kasa.MCPClient) error {
	section := func(title string) {
		fmt.Printf("\n\n%s\n%s\n", title, strings.Repeat("-", 60))
	}

	fmt.Printf("\n%s\nWEATHER MCP CLIENT DEMONSTRATION\n%s\n", strings.Repeat("=", 60), strings.Repeat("=", 60))

	section("1. LISTING RESOURCES:")
	resources, err := client.ListResources(ctx)
	if err != nil {
		return err
	}
	for _, r := range resources {
		fmt.Printf("\nName: %s\nURI: %s\nDescription: %s\n", r.Name, r.URI, r.Description)
	}

	section("2. READING A RESOURCE (New York):")
	weatherData, err := client.ReadResource(ctx, "weather://new_york")
	if err != nil {
		return err
	}
	fmt.Println(weatherData)

	section("3. LISTING TOOLS:")
	specs, err := client.Specs(ctx)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		fmt.Printf("\nTool: %s\nDescription: %s\n", spec.Name, spec.Description)
	}

	section("4. CALLING TOOL: get_current_weather")
	if err := callAndPrint(ctx, client, "get_current_weather", map[string]any{"city": "london"}); err != nil {
		return err
	}

	section("5. CALLING TOOL: compare_weather")
	if err := callAndPrint(ctx, client, "compare_weather", map[string]any{"city1": "new_york", "city2": "tokyo"}); err != nil {
		return err
	}

	section("6. CALLING TOOL: get_temperature_summary")
	if err := callAndPrint(ctx, client, "get_temperature_summary", map[string]any{}); err != nil {
		return err
	}

	section("7. LISTING PROMPTS:")
	prompts, err := client.ListPrompts(ctx)
	if err != nil {
		return err
	}
	for _, p := range prompts {
		fmt.Printf("\nPrompt: %s\nDescription: %s\nArguments:\n", p.Name, p.Description)
		for _, arg := range p.Arguments {
			fmt.Printf("  - %s: %s (required: %t)\n", arg.Name, arg.Description, arg.Required)
		}
	}

	section("8. GETTING PROMPT: weather_report")
	prompt, err := client.GetPrompt(ctx, "weather_report", map[string]string{"city": "paris"})
	if err != nil {
		return err
	}
	fmt.Printf("Description: %s\n", prompt.Description)
	for _, msg := range prompt.Messages {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Text)
	}

	fmt.Printf("\n%s\nDEMONSTRATION COMPLETE\n%s\n\n", strings.Repeat("=", 60), strings.Repeat("=", 60))
	return nil
}

func callAndPrint(ctx context.Context, client *kasa.MCPClient, name string, args map[string]any) error {
	result, err := client.Run(ctx, name, args)
	if err != nil {
		return err
	}

	// Text results arrive wrapped under the "result" key.
	if text, ok := result["result"].(string); ok {
		fmt.Println(text)
		return nil
	}
	fmt.Printf("%v\n", result)
	return nil
}
