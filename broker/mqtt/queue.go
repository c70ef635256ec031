package mqtt

import (
	"sync"
	"time"

	mq "github.com/sylvia-iot/general-mq"
)

// Queue is the MQTT variant of mq.Queue.
type Queue struct {
	opts mq.QueueOptions
	conn *Connection

	status *mq.StatusEmitter

	mu      sync.Mutex
	handler mq.MsgHandler
	closed  bool
	inLoop  bool
}

// NewQueue constructs an MQTT Queue bound to conn. SharedPrefix, if given, must
// be non-empty; it is meaningful only for unicast receivers.
func NewQueue(opts mq.QueueOptions, conn *Connection) (*Queue, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Queue{
		opts:   opts,
		conn:   conn,
		status: mq.NewStatusEmitter("mqtt-queue:"+opts.Name, mq.WithLogger(conn.Logger())),
	}, nil
}

func (q *Queue) Name() string      { return q.opts.Name }
func (q *Queue) IsRecv() bool      { return q.opts.IsRecv }
func (q *Queue) Reliable() bool    { return q.opts.Reliable }
func (q *Queue) Broadcast() bool   { return q.opts.Broadcast }
func (q *Queue) Status() mq.Status { return q.status.Status() }

func (q *Queue) OnStatus(h mq.StatusHandler) { q.status.OnStatus(h) }
func (q *Queue) OnError(h mq.ErrHandler)     { q.status.OnError(h) }

func (q *Queue) SetMsgHandler(h mq.MsgHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

// Topic returns the MQTT topic this queue subscribes/publishes to:
// sharedPrefix+name for unicast receivers, name otherwise.
func (q *Queue) Topic() string {
	if q.opts.IsRecv && !q.opts.Broadcast && q.opts.SharedPrefix != "" {
		return q.opts.SharedPrefix + q.opts.Name
	}
	return q.opts.Name
}

// Connect validates the receiver-handler precondition then drives
// Closed/Closing -> Connecting and starts the inner connect loop.
func (q *Queue) Connect() error {
	if q.opts.IsRecv {
		q.mu.Lock()
		noHandler := q.handler == nil
		q.mu.Unlock()
		if noHandler {
			return mq.ErrNoMsgHandler
		}
	}

	switch q.status.Status() {
	case mq.Connecting, mq.Connected:
		return nil
	}
	q.mu.Lock()
	q.closed = false
	q.mu.Unlock()
	q.status.SetStatus(mq.Connecting)

	q.conn.OnStatus(q.onConnStatus)
	if q.conn.Status() == mq.Connected {
		go q.innerConnect()
	} else {
		_ = q.conn.Connect()
	}
	return nil
}

func (q *Queue) onConnStatus(status mq.Status) {
	cur := q.status.Status()
	if cur == mq.Closing || cur == mq.Closed {
		return
	}
	if status == mq.Connected {
		q.status.SetStatus(mq.Connecting)
		go q.innerConnect()
		return
	}
	if cur != mq.Connecting {
		q.status.SetStatus(mq.Connecting)
	}
}

func (q *Queue) beginLoop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inLoop {
		return false
	}
	q.inLoop = true
	return true
}

func (q *Queue) endLoop() {
	q.mu.Lock()
	q.inLoop = false
	q.mu.Unlock()
}

// innerConnect drives the MQTT connect path: senders transition to
// Connected as soon as the shared Connection is Connected; receivers
// register their handler then subscribe, retrying on failure.
func (q *Queue) innerConnect() {
	if !q.beginLoop() {
		return
	}
	defer q.endLoop()

	for {
		if q.status.Status() != mq.Connecting {
			return
		}
		if q.conn.Status() != mq.Connected {
			return
		}

		if !q.opts.IsRecv {
			q.status.SetStatus(mq.Connected)
			return
		}

		q.mu.Lock()
		h := q.handler
		q.mu.Unlock()

		topic := q.Topic()
		qos := byte(0)
		if q.opts.Reliable {
			qos = 1
		}
		if err := q.conn.addPacketHandler(q.opts.Name, topic, q.opts.Reliable, h); err != nil {
			q.status.EmitError(err)
			time.Sleep(q.opts.ReconnectInterval())
			continue
		}
		if err := q.conn.Subscribe(topic, qos); err != nil {
			q.conn.removePacketHandler(q.opts.Name)
			q.status.EmitError(err)
			time.Sleep(q.opts.ReconnectInterval())
			continue
		}

		q.status.SetStatus(mq.Connected)
		return
	}
}

// Close unsubscribes (for receivers), clears the packet handler, and fires
// ack exactly once.
func (q *Queue) Close(ack func(error)) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if ack != nil {
			ack(nil)
		}
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.status.SetStatus(mq.Closing)
	var err error
	if q.opts.IsRecv {
		q.conn.removePacketHandler(q.opts.Name)
		if q.conn.Status() == mq.Connected {
			err = q.conn.Unsubscribe(q.Topic())
		}
	}
	q.status.SetStatus(mq.Closed)
	if ack != nil {
		ack(err)
	}
	return err
}

// SendMsg publishes payload on this sender queue: client.publish(topic,
// payload, {qos}) with the callback as the ack.
func (q *Queue) SendMsg(payload []byte, ack func(error)) error {
	if q.opts.IsRecv {
		return mq.ErrQueueIsReceiver
	}
	if q.status.Status() != mq.Connected {
		return mq.ErrNotConnected
	}
	qos := byte(0)
	if q.opts.Reliable {
		qos = 1
	}
	topic := q.opts.Name
	go func() {
		err := q.conn.Publish(topic, qos, payload)
		if ack != nil {
			ack(err)
		}
	}()
	return nil
}

// Ack is a documented no-op for MQTT: QoS settlement already occurred at
// the protocol level.
func (q *Queue) Ack(_ mq.Message, ack func(error)) error {
	if !q.opts.IsRecv {
		return mq.ErrQueueIsSender
	}
	if ack != nil {
		ack(nil)
	}
	return nil
}

// Nack is a documented no-op for MQTT; it cannot cause redelivery.
func (q *Queue) Nack(_ mq.Message, ack func(error)) error {
	if !q.opts.IsRecv {
		return mq.ErrQueueIsSender
	}
	if ack != nil {
		ack(nil)
	}
	return nil
}
