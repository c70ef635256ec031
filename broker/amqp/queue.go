package amqp

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	amqpclient "github.com/rabbitmq/amqp091-go"

	mq "github.com/sylvia-iot/general-mq"
)

// Queue is the AMQP variant of mq.Queue.
type Queue struct {
	opts mq.QueueOptions
	conn *Connection

	status *mq.StatusEmitter

	mu        sync.Mutex
	handler   mq.MsgHandler
	channel   *amqpclient.Channel
	anonQueue string
	closed    bool
	inLoop    bool
}

// NewQueue constructs an AMQP Queue bound to conn. prefetch (receivers only)
// must be in [1, 65535]; persistent (senders only) defaults to false.
func NewQueue(opts mq.QueueOptions, conn *Connection) (*Queue, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.IsRecv {
		if err := mq.ValidatePrefetch(opts.Prefetch); err != nil {
			return nil, err
		}
	}
	return &Queue{
		opts:   opts,
		conn:   conn,
		status: mq.NewStatusEmitter("amqp-queue:"+opts.Name, mq.WithLogger(conn.Logger())),
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

// Connect validates the receiver-handler precondition then drives
// Closed/Closing -> Connecting and starts the inner connect loop, cascading
// from the shared Connection's own status.
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

// onConnStatus implements the cascade: when the Connection leaves
// Connected, the queue (unless terminal) re-enters Connecting and retries;
// when it enters Connected, the queue triggers the inner loop immediately.
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
	go q.scheduleRetry()
}

func (q *Queue) scheduleRetry() {
	if !q.beginLoop() {
		return
	}
	defer q.endLoop()
	time.Sleep(q.opts.ReconnectInterval())
	if q.status.Status() == mq.Connecting {
		q.innerConnectLocked()
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

// innerConnect runs the inner connect loop only while Connecting.
func (q *Queue) innerConnect() {
	if !q.beginLoop() {
		return
	}
	defer q.endLoop()
	q.innerConnectLocked()
}

func (q *Queue) innerConnectLocked() {
	for {
		if q.status.Status() != mq.Connecting {
			return
		}
		if q.conn.Status() != mq.Connected {
			time.Sleep(q.opts.ReconnectInterval())
			if q.status.Status() != mq.Connecting {
				return
			}
			continue
		}

		if err := q.openChannel(); err != nil {
			q.status.EmitError(errors.Wrap(err, "amqp queue connect failed"))
			time.Sleep(q.opts.ReconnectInterval())
			continue
		}

		q.status.SetStatus(mq.Connected)
		return
	}
}

func (q *Queue) openChannel() error {
	raw := q.conn.Raw()
	if raw == nil {
		return errors.New("connection has no active channel source")
	}
	ch, err := raw.Channel()
	if err != nil {
		return errors.Wrap(err, "unable to open channel")
	}
	if q.opts.Reliable {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "unable to enable confirm mode")
		}
	}

	var target, anonQueue string

	if q.opts.Broadcast {
		if err := ch.ExchangeDeclare(q.opts.Name, "fanout", false, false, false, false, nil); err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "unable to declare fanout exchange")
		}
		if q.opts.IsRecv {
			aq, err := ch.QueueDeclare("", false, false, true, false, nil)
			if err != nil {
				_ = ch.Close()
				return errors.Wrap(err, "unable to declare anonymous queue")
			}
			if err := ch.QueueBind(aq.Name, "", q.opts.Name, false, nil); err != nil {
				_ = ch.Close()
				return errors.Wrap(err, "unable to bind anonymous queue")
			}
			anonQueue = aq.Name
			target = aq.Name
		}
	} else {
		if _, err := ch.QueueDeclare(q.opts.Name, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "unable to declare queue")
		}
		target = q.opts.Name
	}

	if q.opts.IsRecv {
		if err := ch.Qos(q.opts.Prefetch, 0, false); err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "unable to set prefetch")
		}
		deliveries, err := ch.Consume(target, "", false, false, false, false, nil)
		if err != nil {
			_ = ch.Close()
			return errors.Wrap(err, "unable to consume")
		}
		go q.dispatch(deliveries)
	}

	closeCh := make(chan *amqpclient.Error, 1)
	ch.NotifyClose(closeCh)
	go q.watchChannelClose(ch, closeCh)

	q.mu.Lock()
	q.channel = ch
	q.anonQueue = anonQueue
	q.mu.Unlock()
	return nil
}

func (q *Queue) watchChannelClose(ch *amqpclient.Channel, closeCh chan *amqpclient.Error) {
	amqpErr, ok := <-closeCh
	if !ok {
		return
	}
	q.mu.Lock()
	if q.channel == ch {
		q.channel = nil
	}
	q.mu.Unlock()

	cur := q.status.Status()
	if cur == mq.Closing || cur == mq.Closed {
		return
	}
	q.status.EmitError(errors.Wrap(amqpErr, "amqp channel closed"))
	q.status.SetStatus(mq.Connecting)
	go q.innerConnect()
}

// dispatch routes broker deliveries to the installed handler in delivery
// order, settling via Ack/Nack only after the handler's completion callback
// fires.
func (q *Queue) dispatch(deliveries <-chan amqpclient.Delivery) {
	for d := range deliveries {
		q.mu.Lock()
		h := q.handler
		q.mu.Unlock()
		if h == nil {
			_ = d.Nack(false, true)
			continue
		}
		delivery := d
		h(mq.Message{Payload: delivery.Body, Meta: delivery}, func(err error) {
			if err != nil {
				_ = delivery.Nack(false, true)
				return
			}
			_ = delivery.Ack(false)
		})
	}
}

// Close tears down the channel/anonymous queue, clears listeners, and fires
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
	ch := q.channel
	q.channel = nil
	q.mu.Unlock()

	q.status.SetStatus(mq.Closing)
	var err error
	if ch != nil {
		err = ch.Close()
	}
	q.status.SetStatus(mq.Closed)
	if ack != nil {
		ack(err)
	}
	return err
}

// SendMsg publishes payload on this sender queue.
func (q *Queue) SendMsg(payload []byte, ack func(error)) error {
	if q.opts.IsRecv {
		return mq.ErrQueueIsReceiver
	}
	if q.status.Status() != mq.Connected {
		return mq.ErrNotConnected
	}
	q.mu.Lock()
	ch := q.channel
	q.mu.Unlock()
	if ch == nil {
		return mq.ErrNotConnected
	}

	exchange, routingKey := mq.ExchangeAndRoutingKey(q.opts.Name, q.opts.Broadcast)
	publishing := amqpclient.Publishing{Body: payload}
	if q.opts.Persistent {
		publishing.DeliveryMode = amqpclient.Persistent
	}

	if q.opts.Reliable {
		confirmation, err := ch.PublishWithDeferredConfirm(exchange, routingKey, true, false, publishing)
		if err != nil {
			if ack != nil {
				ack(errors.Wrap(err, "publish failed"))
			}
			return err
		}
		go func() {
			var err error
			if !confirmation.Wait() {
				err = errors.New("broker did not confirm publish")
			}
			if ack != nil {
				ack(err)
			}
		}()
		return nil
	}

	err := ch.Publish(exchange, routingKey, false, false, publishing)
	go func() {
		// Yield to the scheduler between publish and ack even when the
		// broker acknowledges synchronously.
		time.Sleep(time.Millisecond)
		if ack != nil {
			ack(err)
		}
	}()
	return err
}

// Ack settles msg as successfully processed via channel.Ack.
func (q *Queue) Ack(msg mq.Message, ack func(error)) error {
	if !q.opts.IsRecv {
		return mq.ErrQueueIsSender
	}
	delivery, ok := msg.Meta.(amqpclient.Delivery)
	if !ok {
		err := errors.New("message meta is not an amqp delivery")
		if ack != nil {
			ack(err)
		}
		return err
	}
	err := delivery.Ack(false)
	if ack != nil {
		ack(err)
	}
	return err
}

// Nack settles msg as failed, requeueing it.
func (q *Queue) Nack(msg mq.Message, ack func(error)) error {
	if !q.opts.IsRecv {
		return mq.ErrQueueIsSender
	}
	delivery, ok := msg.Meta.(amqpclient.Delivery)
	if !ok {
		err := errors.New("message meta is not an amqp delivery")
		if ack != nil {
			ack(err)
		}
		return err
	}
	err := delivery.Nack(false, true)
	if ack != nil {
		ack(err)
	}
	return err
}
