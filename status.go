package mq

import (
	"log/slog"
	"sync"
)

// Status is the lifecycle state shared by Connections and Queues.
type Status int

const (
	Closed Status = iota
	Connecting
	Connected
	Disconnected
	Closing
)

func (s Status) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// StatusHandler is invoked on every status transition of a Connection or
// Queue. It must not block for long; it runs on the component's own
// single-threaded event loop.
type StatusHandler func(status Status)

// ErrHandler is invoked when a Connection or Queue observes a non-fatal
// transport error that does not, by itself, change the component's status.
type ErrHandler func(err error)

// StatusEmitter is the low-frequency event stream every driver/queue
// composes. Status events are emitted in strict transition order and never
// duplicated consecutively.
// Broker-specific packages hold one as a named field (not embedded) so they
// control which methods they expose publicly.
type StatusEmitter struct {
	mu        sync.Mutex
	status    Status
	onStatus  []StatusHandler
	onErr     []ErrHandler
	component string
	logger    *slog.Logger
}

// NewStatusEmitter constructs a StatusEmitter starting in Closed, labelled
// component for log lines. Logs to slog.Default() unless overridden with
// WithLogger.
func NewStatusEmitter(component string, opts ...ConnOption) *StatusEmitter {
	cfg := newConnConfig(opts)
	return &StatusEmitter{status: Closed, component: component, logger: cfg.logger}
}

// Logger returns the logger this emitter was constructed with, so owning
// Connections/Queues can log outside of SetStatus/EmitError under the same
// destination.
func (e *StatusEmitter) Logger() *slog.Logger { return e.logger }

// Status returns the current lifecycle state.
func (e *StatusEmitter) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnStatus registers a listener invoked on every status transition.
func (e *StatusEmitter) OnStatus(h StatusHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStatus = append(e.onStatus, h)
}

// OnError registers a listener invoked on non-fatal transport errors.
func (e *StatusEmitter) OnError(h ErrHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onErr = append(e.onErr, h)
}

// SetStatus transitions to status and fans out to listeners iff it differs
// from the current one.
func (e *StatusEmitter) SetStatus(status Status) {
	e.mu.Lock()
	if e.status == status {
		e.mu.Unlock()
		return
	}
	e.status = status
	handlers := append([]StatusHandler(nil), e.onStatus...)
	e.mu.Unlock()

	e.logger.Debug("status transition", "component", e.component, "status", status.String())
	for _, h := range handlers {
		h(status)
	}
}

// EmitError fans out a non-fatal transport error to registered listeners.
func (e *StatusEmitter) EmitError(err error) {
	e.mu.Lock()
	handlers := append([]ErrHandler(nil), e.onErr...)
	e.mu.Unlock()

	e.logger.Warn("transport error", "component", e.component, "error", err)
	for _, h := range handlers {
		h(err)
	}
}
