// ABOUTME: Closed set of JSON-RPC 2.0 error codes used by the gateway.
// ABOUTME: Error values carry a code and message and compare by code with errors.Is.

package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Error is a JSON-RPC 2.0 error object. It doubles as a Go error so
// handlers can return it directly and have its code preserved.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrParse          = &Error{Code: CodeParseError, Message: "parse error"}
	ErrInvalidRequest = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrMethodNotFound = &Error{Code: CodeMethodNotFound, Message: "method not found"}
	ErrInternal       = &Error{Code: CodeInternalError, Message: "internal error"}
)

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ParseError reports bytes that could not be decoded.
func ParseError(detail string) *Error {
	return NewError(CodeParseError, "parse error: "+detail)
}

// InvalidRequest reports a structurally valid but incomplete envelope.
func InvalidRequest(detail string) *Error {
	return NewError(CodeInvalidRequest, "invalid request: "+detail)
}

// MethodNotFound names the method that has no handler.
func MethodNotFound(method string) *Error {
	return NewError(CodeMethodNotFound, fmt.Sprintf("method not found: %s", method))
}

// InternalError wraps any fault raised while building a response.
func InternalError(detail string) *Error {
	return NewError(CodeInternalError, "internal error: "+detail)
}
