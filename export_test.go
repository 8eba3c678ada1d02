package kasa

// Export internals for testing
var (
	NewArgValidator         = newArgValidator
	InputSchemaToParameters = inputSchemaToParameters
	PropertyToParameter     = propertyToParameter
	ContentToText           = contentToText
	MCPContentToMap         = mcpContentToMap
)

// Validate exposes argValidator.validate for testing
func (v *argValidator) Validate(args map[string]any) error {
	return v.validate(args)
}
