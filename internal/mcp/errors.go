package mcp

import "fmt"

// RPCError wraps a JSON-RPC 2.0 error reply so callers can distinguish
// method-not-found (unsupported capability) from a transport failure.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mcp: rpc error %d: %s", e.Code, e.Message)
}

// Unsupported reports whether the server rejected the call because the
// method does not exist, as opposed to failing while handling it.
func (e *RPCError) Unsupported() bool {
	return e.Code == ErrCodeMethodNotFound
}

// ErrUnsupportedMethod is returned by Client when a method is called that
// the supported-methods cache already knows the server rejects, short-
// circuiting the wire round-trip.
type ErrUnsupportedMethod struct {
	Method string
}

func (e *ErrUnsupportedMethod) Error() string {
	return fmt.Sprintf("mcp: method %q not supported by server", e.Method)
}
