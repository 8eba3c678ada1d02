package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// ServerName is reported in the MCP initialize handshake.
	ServerName = "weather-server"

	// ServerVersion is reported in the MCP initialize handshake.
	ServerVersion = "1.0.0"
)

// NewServer builds the weather MCP server with its tools, resources
// and prompts registered.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, true),
		server.WithPromptCapabilities(true),
	)

	registerTools(s)
	registerResources(s)
	registerPrompts(s)

	return s
}

// Serve runs the weather MCP server over stdio until the client
// disconnects.
func Serve() error {
	if err := server.ServeStdio(NewServer()); err != nil {
		return goerr.Wrap(err, "failed to serve weather MCP server")
	}
	return nil
}

func registerTools(s *server.MCPServer) {
	s.AddTool(
		mcp.NewTool("get_current_weather",
			mcp.WithDescription("Get the current weather for a specific city"),
			mcp.WithString("city",
				mcp.Required(),
				mcp.Description("The city name (e.g., new_york, london, tokyo, paris)"),
			),
		),
		handleCurrentWeather,
	)

	s.AddTool(
		mcp.NewTool("compare_weather",
			mcp.WithDescription("Compare weather conditions between two cities"),
			mcp.WithString("city1",
				mcp.Required(),
				mcp.Description("First city name"),
			),
			mcp.WithString("city2",
				mcp.Required(),
				mcp.Description("Second city name"),
			),
		),
		handleCompareWeather,
	)

	s.AddTool(
		mcp.NewTool("get_temperature_summary",
			mcp.WithDescription("Get a summary of temperatures across all cities"),
		),
		handleTemperatureSummary,
	)
}

func argString(req mcp.CallToolRequest, key string) string {
	v, _ := req.Params.Arguments[key].(string)
	return v
}

// Tool failures such as unknown cities are reported as text results,
// not protocol errors, so the model can read them and recover.
func handleCurrentWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CurrentWeather(argString(req, "city"))), nil
}

func handleCompareWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CompareWeather(argString(req, "city1"), argString(req, "city2"))), nil
}

func handleTemperatureSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TemperatureSummary()), nil
}

func registerResources(s *server.MCPServer) {
	for _, key := range Cities() {
		w, _ := Lookup(key)
		uri := "weather://" + key

		s.AddResource(
			mcp.NewResource(uri, fmt.Sprintf("Weather for %s", w.City),
				mcp.WithResourceDescription(fmt.Sprintf("Current weather conditions in %s", w.City)),
				mcp.WithMIMEType("application/json"),
			),
			newResourceHandler(key, uri),
		)
	}
}

func newResourceHandler(cityKey, uri string) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := ResourceJSON(cityKey, time.Now())
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      uri,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	}
}

// ResourceJSON renders the resource body of one city, the weather
// record plus a read timestamp.
func ResourceJSON(cityKey string, now time.Time) (string, error) {
	w, ok := Lookup(cityKey)
	if !ok {
		return "", goerr.New("unknown city", goerr.V("city", cityKey))
	}

	body := map[string]any{
		"city":        w.City,
		"temperature": w.Temperature,
		"conditions":  w.Conditions,
		"humidity":    w.Humidity,
		"wind_speed":  w.WindSpeed,
		"timestamp":   now.Format(time.RFC3339),
	}

	raw, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal weather resource", goerr.V("city", cityKey))
	}
	return string(raw), nil
}

func registerPrompts(s *server.MCPServer) {
	s.AddPrompt(
		mcp.NewPrompt("weather_report",
			mcp.WithPromptDescription("Generate a weather report for a specific city"),
			mcp.WithArgument("city",
				mcp.ArgumentDescription("The city to get weather for"),
				mcp.RequiredArgument(),
			),
		),
		handleWeatherReportPrompt,
	)

	s.AddPrompt(
		mcp.NewPrompt("travel_weather_advice",
			mcp.WithPromptDescription("Get travel advice based on weather in two cities"),
			mcp.WithArgument("origin",
				mcp.ArgumentDescription("City you're traveling from"),
				mcp.RequiredArgument(),
			),
			mcp.WithArgument("destination",
				mcp.ArgumentDescription("City you're traveling to"),
				mcp.RequiredArgument(),
			),
		),
		handleTravelAdvicePrompt,
	)
}

func handleWeatherReportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	city := req.Params.Arguments["city"]

	return mcp.NewGetPromptResult(
		fmt.Sprintf("Weather report for %s", city),
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(WeatherReportPrompt(city))),
		},
	), nil
}

func handleTravelAdvicePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	origin := req.Params.Arguments["origin"]
	destination := req.Params.Arguments["destination"]

	return mcp.NewGetPromptResult(
		fmt.Sprintf("Travel advice from %s to %s", origin, destination),
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(TravelAdvicePrompt(origin, destination))),
		},
	), nil
}
