package transport

import "github.com/pkg/errors"

var (
	// ErrSessionClosed indicates the session's mailboxes were torn down.
	ErrSessionClosed = errors.New("transport: session closed")

	// ErrPeerUnreachable indicates the sender or recipient is disconnected.
	ErrPeerUnreachable = errors.New("transport: peer unreachable")

	// ErrMalformedMessage indicates a payload that does not decode.
	ErrMalformedMessage = errors.New("transport: malformed message")

	// ErrInvalidEnvelope indicates an envelope missing its session or
	// addressing.
	ErrInvalidEnvelope = errors.New("transport: invalid envelope")
)
