// Package tool implements the Tool Registry & Executor: built-in tool
// schemas, argument validation, and dispatch to either a built-in handler
// or the MCP Client via its namespaced "mcp_<server>_<tool>" prefix.
package tool

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the tool-call error taxonomy from the error
// handling design: ToolArgumentInvalid and ToolHandlerFailure.
type ErrorKind string

const (
	KindArgumentInvalid ErrorKind = "argument_invalid"
	KindHandlerFailure  ErrorKind = "handler_failure"
	KindNotFound        ErrorKind = "not_found"
)

// Error wraps a tool-call failure with enough context to build the
// {error: message} ToolResult content the Executor always produces instead
// of propagating — a tool call never surfaces a Go error past Execute.
type Error struct {
	ToolName string
	Kind     ErrorKind
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.ToolName, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func newArgumentError(toolName string, cause error) *Error {
	return &Error{ToolName: toolName, Kind: KindArgumentInvalid, Cause: cause}
}

func newHandlerError(toolName string, cause error) *Error {
	return &Error{ToolName: toolName, Kind: KindHandlerFailure, Cause: cause}
}

// ErrUnknownTool names the case where no registered handler or MCP route
// matches a requested tool name. The Executor does not return it: an
// unknown name becomes an {"error": ...} tool result instead.
var ErrUnknownTool = errors.New("tool: unknown tool")
