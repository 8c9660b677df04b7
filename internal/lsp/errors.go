package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the session manager.
var (
	// ErrNoData indicates a transport had nothing to read right now.
	// It is a transient condition, not a failure.
	ErrNoData = errors.New("no data available")

	// ErrClosed indicates the transport's peer closed the channel
	// permanently. It is reported exactly once per transport.
	ErrClosed = errors.New("transport closed by peer")

	// ErrSessionNotNormal indicates an operation that requires a fully
	// initialized session was attempted in another state.
	ErrSessionNotNormal = errors.New("session not in normal state")

	// ErrSessionExited indicates the session has terminated.
	ErrSessionExited = errors.New("session exited")

	// ErrNoServer indicates no langserver is configured for a filetype.
	ErrNoServer = errors.New("no langserver configured")

	// ErrUnknownEvent indicates the codec produced an event kind the
	// session does not recognize. This is a protocol invariant violation
	// and is fatal to the session.
	ErrUnknownEvent = errors.New("unknown protocol event")

	// ErrUnmatchedResponse indicates a completion response arrived whose
	// request id has no pending entry. Fatal: the codec and session have
	// desynchronized.
	ErrUnmatchedResponse = errors.New("response id has no pending request")
)

// SessionError wraps an error with the identity of the session it belongs to.
type SessionError struct {
	Key SessionKey
	Err error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}
