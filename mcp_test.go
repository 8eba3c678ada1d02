package kasa_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/y-murata/kasa"
)

func TestInputSchemaToParameters(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "The city name",
			},
			"days": map[string]any{
				"type": "integer",
			},
			"options": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"unit": map[string]any{
						"type": "string",
						"enum": []any{"celsius", "fahrenheit"},
					},
				},
				"required": []any{"unit"},
			},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		Required: []string{"city"},
	}

	params := gt.R1(kasa.InputSchemaToParameters(schema)).NoError(t)

	gt.Equal(t, params["city"].Type, kasa.TypeString)
	gt.Equal(t, params["city"].Description, "The city name")
	gt.Equal(t, params["days"].Type, kasa.TypeInteger)

	options := params["options"]
	gt.Equal(t, options.Type, kasa.TypeObject)
	gt.Equal(t, options.Required, []string{"unit"})
	gt.Equal(t, options.Properties["unit"].Enum, []string{"celsius", "fahrenheit"})

	tags := params["tags"]
	gt.Equal(t, tags.Type, kasa.TypeArray)
	gt.Equal(t, tags.Items.Type, kasa.TypeString)
}

func TestPropertyToParameter(t *testing.T) {
	t.Run("unsupported type degrades to string", func(t *testing.T) {
		param := gt.R1(kasa.PropertyToParameter(map[string]any{
			"type":        "date-time",
			"description": "When to check",
		})).NoError(t)

		gt.Equal(t, param.Type, kasa.TypeString)
		gt.Equal(t, param.Description, "When to check (original type: date-time)")
	})

	t.Run("missing type degrades to string", func(t *testing.T) {
		param := gt.R1(kasa.PropertyToParameter(map[string]any{
			"description": "anything",
		})).NoError(t)

		gt.Equal(t, param.Type, kasa.TypeString)
		gt.Equal(t, param.Description, "anything")
	})

	t.Run("array without items fails", func(t *testing.T) {
		_, err := kasa.PropertyToParameter(map[string]any{
			"type": "array",
		})
		gt.Error(t, err)
	})

	t.Run("default is preserved", func(t *testing.T) {
		param := gt.R1(kasa.PropertyToParameter(map[string]any{
			"type":    "string",
			"default": "fahrenheit",
		})).NoError(t)
		gt.Equal(t, param.Default, any("fahrenheit"))
	})
}

func TestMCPContentToMap(t *testing.T) {
	t.Run("JSON object content", func(t *testing.T) {
		result := kasa.MCPContentToMap([]mcp.Content{
			mcp.TextContent{Type: "text", Text: `{"temperature": 68}`},
		})
		gt.Equal(t, result, map[string]any{"temperature": float64(68)})
	})

	t.Run("JSON scalar content", func(t *testing.T) {
		result := kasa.MCPContentToMap([]mcp.Content{
			mcp.TextContent{Type: "text", Text: `42`},
		})
		gt.Equal(t, result, map[string]any{"result": float64(42)})
	})

	t.Run("plain text content", func(t *testing.T) {
		result := kasa.MCPContentToMap([]mcp.Content{
			mcp.TextContent{Type: "text", Text: "Current weather in Tokyo:\nTemperature: 68°F"},
		})
		gt.Equal(t, result, map[string]any{"result": "Current weather in Tokyo:\nTemperature: 68°F"})
	})

	t.Run("no content", func(t *testing.T) {
		result := kasa.MCPContentToMap(nil)
		gt.Equal(t, result, map[string]any{})
	})
}

func TestContentToText(t *testing.T) {
	text := kasa.ContentToText([]mcp.Content{
		mcp.TextContent{Type: "text", Text: "part one "},
		mcp.TextContent{Type: "text", Text: "part two"},
	})
	gt.Equal(t, text, "part one part two")
}
