package mq

import "github.com/pkg/errors"

// Error kinds returned by the core of the library. Runtime transport
// failures are reported as status events (see Status) rather than through
// these sentinels; these are reserved for synchronous failures and for
// failures delivered through ack callbacks.
var (
	// ErrInvalidArgument is returned when construction-time validation of an
	// Options record, name, or URI fails.
	ErrInvalidArgument = errors.New("general-mq: invalid argument")

	// ErrNotConnected is returned when an operation requires a Connected
	// queue or connection but the current state is something else.
	ErrNotConnected = errors.New("general-mq: not connected")

	// ErrQueueIsReceiver is returned by SendMsg on a receiver queue.
	ErrQueueIsReceiver = errors.New("general-mq: queue is a receiver")

	// ErrQueueIsSender is returned by Ack/Nack on a sender queue.
	ErrQueueIsSender = errors.New("general-mq: queue is a sender")

	// ErrNoMsgHandler is returned by Connect on a receiver queue that has no
	// message handler installed.
	ErrNoMsgHandler = errors.New("general-mq: no message handler installed")

	// ErrTransport names broker-reported I/O or protocol failures. The
	// drivers in this module do not return it; they wrap the client
	// library's own error instead.
	ErrTransport = errors.New("general-mq: transport error")

	// ErrRscUnavailable is returned when an external collaborator (auth,
	// coremgr) is unreachable. Reserved for SDK-level callers; the core
	// never returns it directly.
	ErrRscUnavailable = errors.New("general-mq: resource unavailable")

	// ErrClosed names operations attempted after Close(). The drivers in
	// this module do not return it; SendMsg on a closed queue returns
	// ErrNotConnected.
	ErrClosed = errors.New("general-mq: closed")
)

// wrapInvalid wraps ErrInvalidArgument with a per-field message.
func wrapInvalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
