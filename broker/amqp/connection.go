// Package amqp wraps AMQP 0-9-1 connections and channels (via
// github.com/rabbitmq/amqp091-go) behind the mq.Connection and mq.Queue
// facades, with auto-reconnect modeled on dihedron/rabbit's runWatcher state
// machine.
package amqp

import (
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqpclient "github.com/rabbitmq/amqp091-go"

	mq "github.com/sylvia-iot/general-mq"
)

// Connection is the AMQP variant of mq.Connection.
type Connection struct {
	opts   mq.ConnOptions
	status *mq.StatusEmitter

	mu     sync.Mutex
	conn   *amqpclient.Connection
	closed bool

	retryTimer *time.Timer
}

// NewConnection constructs an AMQP Connection. The URI scheme must be amqp or amqps.
func NewConnection(opts mq.ConnOptions, connOpts ...mq.ConnOption) (*Connection, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	scheme, err := mq.ParseHostURI(opts.HostURI)
	if err != nil {
		return nil, err
	}
	if !scheme.IsAMQP() {
		return nil, errors.Errorf("amqp connection requires amqp(s):// scheme, got %q", scheme)
	}
	return &Connection{
		opts:   opts,
		status: mq.NewStatusEmitter("amqp-connection", connOpts...),
	}, nil
}

// Logger returns the logger this Connection (and the Queues built on it)
// log through.
func (c *Connection) Logger() *slog.Logger { return c.status.Logger() }

func (c *Connection) Scheme() mq.Scheme {
	s, _ := mq.ParseHostURI(c.opts.HostURI)
	return s
}

func (c *Connection) Status() mq.Status           { return c.status.Status() }
func (c *Connection) OnStatus(h mq.StatusHandler) { c.status.OnStatus(h) }
func (c *Connection) OnError(h mq.ErrHandler)     { c.status.OnError(h) }

// Connect is idempotent from Closed/Closing, a no-op from
// Connecting/Connected.
func (c *Connection) Connect() error {
	switch c.status.Status() {
	case mq.Connecting, mq.Connected:
		return nil
	}
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
	c.status.SetStatus(mq.Connecting)
	go c.connectLoop()
	return nil
}

func (c *Connection) connectLoop() {
	for {
		if c.status.Status() != mq.Connecting {
			return
		}

		conn, err := c.dial()
		if err != nil {
			c.status.EmitError(errors.Wrap(err, "amqp dial failed"))
			if !c.waitRetry() {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		closeCh := make(chan *amqpclient.Error, 1)
		conn.NotifyClose(closeCh)
		go c.watchClose(closeCh)

		c.status.SetStatus(mq.Connected)
		return
	}
}

func (c *Connection) dial() (*amqpclient.Connection, error) {
	timeout := c.opts.ConnectTimeout()
	cfg := amqpclient.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			conn, err := net.DialTimeout(network, addr, timeout)
			if err != nil {
				return nil, err
			}
			if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
	if c.Scheme() == mq.SchemeAMQPS {
		cfg.TLSClientConfig = &tls.Config{InsecureSkipVerify: c.opts.Insecure}
	}
	return amqpclient.DialConfig(c.opts.HostURI, cfg)
}

// watchClose reacts to the connection's close notification: transition
// Connected -> Connecting and redial, unless we are terminal.
func (c *Connection) watchClose(closeCh chan *amqpclient.Error) {
	amqpErr, ok := <-closeCh
	if !ok {
		return
	}
	status := c.status.Status()
	if status == mq.Closing || status == mq.Closed {
		return
	}
	c.status.Logger().Warn("amqp connection closed", "error", amqpErr)
	c.status.SetStatus(mq.Connecting)
	go c.connectLoop()
}

func (c *Connection) waitRetry() bool {
	d := c.opts.ReconnectInterval()
	timer := time.NewTimer(d)
	c.mu.Lock()
	c.retryTimer = timer
	c.mu.Unlock()
	<-timer.C
	return c.status.Status() == mq.Connecting
}

// Close drives the connection to Closed and fires ack exactly once.
func (c *Connection) Close(ack func(error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if ack != nil {
			ack(nil)
		}
		return nil
	}
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	conn := c.conn
	c.mu.Unlock()

	c.status.SetStatus(mq.Closing)
	var err error
	if conn != nil && !conn.IsClosed() {
		err = conn.Close()
	}
	c.status.SetStatus(mq.Closed)
	if ack != nil {
		ack(err)
	}
	return err
}

// Raw returns the underlying amqp091-go connection, or nil if not
// Connected. Used by Queue to open channels.
func (c *Connection) Raw() *amqpclient.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
