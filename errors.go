package kasa

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrInvalidTool is returned when a tool specification is malformed.
	ErrInvalidTool = goerr.New("invalid tool specification")

	// ErrInvalidParameter is returned when a parameter specification or an
	// input value passed to a session is malformed.
	ErrInvalidParameter = goerr.New("invalid parameter")

	// ErrInvalidSchema is returned when a tool input schema cannot be
	// converted or compiled.
	ErrInvalidSchema = goerr.New("invalid input schema")

	// ErrToolNameConflict is returned when two tools share the same name.
	ErrToolNameConflict = goerr.New("tool name conflict")

	// ErrLoopLimitExceeded is returned when the LLM keeps requesting tool
	// calls and never produces a final answer within the configured limit.
	ErrLoopLimitExceeded = goerr.New("loop limit exceeded")

	// ErrNotConnected is returned when an MCP operation is attempted
	// before the client session is established.
	ErrNotConnected = goerr.New("MCP client not connected")
)
