package pim

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error kinds returned by the transport. Use errors.Is to classify an error.
var (
	// ErrTransport covers network failures, timeouts and non-JSON-RPC HTTP errors
	ErrTransport = errors.New("pim: transport error")
	// ErrDecode covers responses that are not a well-formed JSON-RPC envelope
	ErrDecode = errors.New("pim: malformed response")
	// ErrRemote covers error envelopes returned by the remote
	ErrRemote = errors.New("pim: remote error")
)

// RPCError is the error returned by Client.Call
type RPCError struct {
	// Kind is one of ErrTransport, ErrDecode or ErrRemote
	Kind error
	// Message is the remote error message or a description of the failure
	Message string
	// Code is the remote error code, zero when absent
	Code int
	// Data is the opaque error data of a remote error, passed through unmodified
	Data json.RawMessage
	// Err is the underlying cause
	Err error
}

// Error implements the error interface
func (e *RPCError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprint(e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *RPCError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func transportError(message string, cause error) *RPCError {
	return &RPCError{Kind: ErrTransport, Message: message, Err: cause}
}

func decodeError(message string, cause error) *RPCError {
	return &RPCError{Kind: ErrDecode, Message: message, Err: cause}
}

// IsRetryable reports whether err is a transport failure. Decode and remote
// errors are not retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// ErrorData returns the opaque remote error data carried by err, if any
func ErrorData(err error) json.RawMessage {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Data
	}
	return nil
}
