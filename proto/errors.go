package proto

import (
	"errors"
	"fmt"
)

// Error types for CiK exchanges.
//
// Hard faults (network, protocol, server-class, client-class) invalidate
// the stream framing: the connection must be closed and the next call
// reconnects. Soft conditions (not-found, expired, ...) are not errors at
// all; they are Condition values carried in results (see ClassifyCode).

// ConnectionError wraps an I/O failure on connect, write or read.
// The connection is broken: close it and reconnect on the next call.
type ConnectionError struct {
	Op  string // "connect", "write", "read"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cik: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ShouldCloseConnection returns true: the socket is already unusable.
func (e *ConnectionError) ShouldCloseConnection() bool { return true }

// ProtocolError reports a malformed or unrecognized frame: bad magic, an
// unknown status byte, or a payload that does not decode. Raw carries the
// offending bytes for diagnostics. The stream framing can no longer be
// trusted, so the connection must be closed.
type ProtocolError struct {
	Message string
	Raw     []byte
}

func (e *ProtocolError) Error() string {
	if len(e.Raw) > 0 {
		return fmt.Sprintf("cik: protocol error: %s (raw % x)", e.Message, e.Raw)
	}
	return "cik: protocol error: " + e.Message
}

// ShouldCloseConnection returns true: the stream is desynced.
func (e *ProtocolError) ShouldCloseConnection() bool { return true }

// ServerError reports an internal-class error code: the remote side is in
// a bad state. The connection must be closed.
type ServerError struct {
	Code uint32
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("cik: server error (code 0x%08x)", e.Code)
}

// ShouldCloseConnection returns true.
func (e *ServerError) ShouldCloseConnection() bool { return true }

// ClientError reports a client-class error code: the server accepted the
// request syntactically but rejected it as semantically invalid. The
// connection must be closed.
type ClientError struct {
	Code uint32
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("cik: request rejected by server (code 0x%08x)", e.Code)
}

// ShouldCloseConnection returns true.
func (e *ClientError) ShouldCloseConnection() bool { return true }

// RequestError reports a request rejected locally before anything was
// sent, such as a disallowed clear-mode/tag combination or an invalid TTL.
// Nothing reached the wire, so the connection stays open.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return "cik: invalid request: " + e.Message
}

// ShouldCloseConnection returns false: no bytes were exchanged.
func (e *RequestError) ShouldCloseConnection() bool { return false }

// Condition is a soft outcome reported by the server with a message-class
// code. The exchange completed normally and the connection stays open; the
// server simply answered "no".
type Condition uint32

const (
	// CondNone means the operation succeeded outright.
	CondNone Condition = 0

	// CondNotFound: the key does not exist.
	CondNotFound Condition = Condition(CodeNotFound)

	// CondExpired: the key exists but its TTL has elapsed.
	CondExpired Condition = Condition(CodeExpired)

	// CondOutOfMemory: the server could not allocate room for the entry.
	CondOutOfMemory Condition = Condition(CodeOutOfMemory)

	// CondLimitExceeded: a server-side limit was hit.
	CondLimitExceeded Condition = Condition(CodeLimitExceeded)
)

func (c Condition) String() string {
	switch c {
	case CondNone:
		return "none"
	case CondNotFound:
		return "not found"
	case CondExpired:
		return "expired"
	case CondOutOfMemory:
		return "out of memory"
	case CondLimitExceeded:
		return "limit exceeded"
	default:
		return fmt.Sprintf("condition(0x%08x)", uint32(c))
	}
}

// ClassifyCode turns a failure code into either a soft Condition or a hard
// error:
//
//   - internal class: (CondNone, *ServerError)
//   - client class: (CondNone, *ClientError)
//   - message class: (Condition, nil) — connection stays open
//   - anything else: (CondNone, *ProtocolError)
func ClassifyCode(code uint32) (Condition, error) {
	switch {
	case code&ClassInternal != 0:
		return CondNone, &ServerError{Code: code}
	case code&ClassClient != 0:
		return CondNone, &ClientError{Code: code}
	case code&ClassMessage != 0:
		return Condition(code), nil
	default:
		return CondNone, &ProtocolError{
			Message: fmt.Sprintf("unclassifiable error code 0x%08x", code),
		}
	}
}

// ErrorWithConnectionState is implemented by every error in this package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err invalidates the connection.
// Unknown error types are treated conservatively as fatal to the stream.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
