// Package pool implements a keyed, reference-counted Connection pool: a
// shared registry so multiple managers on the same broker URI reuse one
// transport. It is a parameter passed around by callers, never a
// process-wide singleton.
package pool

import (
	"sync"

	mq "github.com/sylvia-iot/general-mq"
	amqpbroker "github.com/sylvia-iot/general-mq/broker/amqp"
	mqttbroker "github.com/sylvia-iot/general-mq/broker/mqtt"
)

type entry struct {
	conn mq.Connection
	refs int
}

// Pool is a keyed mapping from canonical host URI to a shared Connection
// with a reference count. The cooperative state-machine model used
// elsewhere in this module doesn't require concurrency safety on its own;
// the mutex here only protects the map itself against callers that run
// managers on separate goroutines.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// GetConnection returns the existing Connection for hostURI, or constructs a
// new one (dispatching on scheme, without dialing) and registers it with zero
// references. The caller is responsible for incrementing references itself
// (Managers do so by their owned queue count). connOpts (e.g. mq.WithLogger)
// only take effect on the call that creates the entry; a later caller sharing an
// already-pooled Connection gets the logger the first caller configured.
func (p *Pool) GetConnection(hostURI string, opts mq.ConnOptions, connOpts ...mq.ConnOption) (mq.Connection, error) {
	p.mu.Lock()
	if e, ok := p.entries[hostURI]; ok {
		p.mu.Unlock()
		return e.conn, nil
	}
	p.mu.Unlock()

	opts.HostURI = hostURI
	scheme, err := mq.ParseHostURI(hostURI)
	if err != nil {
		return nil, err
	}

	var conn mq.Connection
	switch {
	case scheme.IsAMQP():
		conn, err = amqpbroker.NewConnection(opts, connOpts...)
	case scheme.IsMQTT():
		conn, err = mqttbroker.NewConnection(opts, connOpts...)
	default:
		err = mq.ErrInvalidArgument
	}
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[hostURI]; ok {
		// Lost the race; reuse the existing entry and drop our dial.
		_ = conn.Close(nil)
		return e.conn, nil
	}
	p.entries[hostURI] = &entry{conn: conn}
	return conn, nil
}

// AddRef increments the reference count for hostURI's entry by n.
func (p *Pool) AddRef(hostURI string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[hostURI]; ok {
		e.refs += n
	}
}

// RemoveConnection decrements the reference count for hostURI by n; when it
// reaches zero the entry is removed and the Connection closed, invoking ack
// exactly once.
func (p *Pool) RemoveConnection(hostURI string, n int, ack func(error)) error {
	p.mu.Lock()
	e, ok := p.entries[hostURI]
	if !ok {
		p.mu.Unlock()
		if ack != nil {
			ack(nil)
		}
		return nil
	}
	e.refs -= n
	if e.refs > 0 {
		p.mu.Unlock()
		if ack != nil {
			ack(nil)
		}
		return nil
	}
	delete(p.entries, hostURI)
	p.mu.Unlock()

	return e.conn.Close(ack)
}

// Len reports the number of distinct Connections currently pooled. Exposed
// for tests verifying that N managers on one URI share one Connection.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
