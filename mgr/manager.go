package mgr

import (
	"log/slog"
	"sync"

	mq "github.com/sylvia-iot/general-mq"
	"github.com/sylvia-iot/general-mq/pool"
)

// ManagerStatus is the readiness signal a Manager aggregates from its
// owned queues.
type ManagerStatus int

const (
	NotReady ManagerStatus = iota
	Ready
)

func (s ManagerStatus) String() string {
	if s == Ready {
		return "ready"
	}
	return "not-ready"
}

// ManagerStatusHandler is invoked only on real readiness transitions.
type ManagerStatusHandler func(status ManagerStatus)

// ManagerOption configures optional, non-required Manager behavior at
// construction time, mirroring mq.ConnOption.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	logger *slog.Logger
}

// WithLogger redirects an Application's or Network's (and its owned
// Connection/Queues') log lines to l instead of slog.Default(). A Connection
// already in the pool keeps the logger it was created with.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) { c.logger = l }
}

// base is the shared scaffolding composed by Application and Network: queue
// ownership, readiness aggregation, and pool-backed close. Neither manager
// embeds base publicly; each exposes its own typed surface over it.
type base struct {
	pool     *pool.Pool
	hostURI  string
	conn     mq.Connection
	queues   map[string]mq.Queue
	refCount int
	logger   *slog.Logger

	mu             sync.Mutex
	status         ManagerStatus
	statusHandlers []ManagerStatusHandler
}

func newBase(p *pool.Pool, hostURI string, opts mq.ConnOptions, prefix string, mgrOpts Options, isNetwork bool, mgrOptFuncs ...ManagerOption) (*base, error) {
	cfg := managerConfig{logger: slog.Default()}
	for _, o := range mgrOptFuncs {
		o(&cfg)
	}

	conn, err := p.GetConnection(hostURI, opts, mq.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}

	queues, err := BuildQueues(conn, prefix, mgrOpts, isNetwork)
	if err != nil {
		return nil, err
	}

	b := &base{
		pool:     p,
		hostURI:  hostURI,
		conn:     conn,
		queues:   queues,
		refCount: len(queues),
		status:   NotReady,
		logger:   cfg.logger,
	}

	for _, q := range queues {
		q.OnStatus(func(mq.Status) { b.recomputeStatus() })
	}

	p.AddRef(hostURI, b.refCount)
	return b, nil
}

// start triggers the shared Connection and every owned queue. It runs after
// the concrete manager has installed its message handlers, so receiver
// queues never observe the no-handler precondition.
func (b *base) start() {
	_ = b.conn.Connect()
	for _, q := range b.queues {
		if err := q.Connect(); err != nil {
			b.logger.Error("queue connect failed", "queue", q.Name(), "error", err)
		}
	}
}

// recomputeStatus: Ready iff every owned queue is Connected, emitted only
// on transitions.
func (b *base) recomputeStatus() {
	ready := true
	for _, q := range b.queues {
		if q.Status() != mq.Connected {
			ready = false
			break
		}
	}
	next := NotReady
	if ready {
		next = Ready
	}

	b.mu.Lock()
	if b.status == next {
		b.mu.Unlock()
		return
	}
	b.status = next
	handlers := append([]ManagerStatusHandler(nil), b.statusHandlers...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(next)
	}
}

func (b *base) onStatus(h ManagerStatusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusHandlers = append(b.statusHandlers, h)
}

func (b *base) status_() ManagerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// closeAll closes every owned queue in sequence, collecting the first
// error, then releases the pooled Connection reference.
func (b *base) closeAll(ack func(error)) error {
	var firstErr error
	for _, q := range b.queues {
		done := make(chan error, 1)
		q.Close(func(err error) { done <- err })
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return b.pool.RemoveConnection(b.hostURI, b.refCount, func(err error) {
		if firstErr == nil {
			firstErr = err
		}
		if ack != nil {
			ack(firstErr)
		}
	})
}
