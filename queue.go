package mq

import "time"

// Message is a received payload plus the driver-specific token needed to
// settle it. MQTT messages carry a nil Meta (ack/nack are no-ops there).
type Message struct {
	Payload []byte
	Meta    interface{}
}

// MsgHandler is invoked for every message a receiver Queue delivers, in
// broker delivery order. done must be called exactly once, after which the
// Queue acks (done(nil)) or nacks (done(err)) the underlying broker message.
type MsgHandler func(msg Message, done func(error))

// QueueOptions configures a Queue. Validation happens at construction time;
// an invalid record fails the constructor rather than Connect.
type QueueOptions struct {
	// Name must match ^[a-z0-9_-]+(\.[a-z0-9_-]+)*$.
	Name string

	// IsRecv selects receiver vs. sender. Fixed for the queue's lifetime.
	IsRecv bool

	// Reliable selects confirm-channel (AMQP) / QoS 1 (MQTT) delivery.
	Reliable bool

	// Broadcast selects fanout-exchange (AMQP) / plain-topic (MQTT)
	// delivery to every receiver, vs. unicast to exactly one.
	Broadcast bool

	// ReconnectMillis is the delay before retrying the inner connect loop.
	// Default 1000 when zero.
	ReconnectMillis int

	// Prefetch is AMQP-receiver only: QoS prefetch count, 1..65535.
	// ApplyDefaults leaves it as given; an AMQP receiver with 0 fails
	// construction.
	Prefetch int

	// Persistent is AMQP-sender only: sets the persistent delivery mode.
	Persistent bool

	// SharedPrefix is MQTT-unicast-receiver only: the shared-subscription
	// group prefix, e.g. "$share/general-mq/". Any non-empty string is
	// accepted (enables MQTT-5 shared subscriptions generally).
	SharedPrefix string
}

// ApplyDefaults fills in zero-valued fields with their documented defaults.
func (o *QueueOptions) ApplyDefaults() {
	if o.ReconnectMillis == 0 {
		o.ReconnectMillis = DefaultReconnectMillis
	}
}

// ReconnectInterval returns ReconnectMillis as a time.Duration.
func (o QueueOptions) ReconnectInterval() time.Duration {
	return time.Duration(o.ReconnectMillis) * time.Millisecond
}

// Validate enforces the shared construction-time rules. Protocol-specific
// extras (Prefetch, SharedPrefix) are validated by each driver's constructor
// since their legality depends on the protocol family.
func (o QueueOptions) Validate() error {
	if err := ValidateName(o.Name); err != nil {
		return err
	}
	if o.ReconnectMillis < 0 {
		return wrapInvalid("ReconnectMillis must be non-negative")
	}
	return nil
}

// ValidatePrefetch enforces the AMQP-receiver prefetch range 1..65535.
// Exported so the data-queue factory can apply a stricter factory-level rule
// (reject an explicit 0) while the Queue constructor itself still accepts
// 1..65535 and leaves substitution of a default to the factory, not this
// validator.
func ValidatePrefetch(prefetch int) error {
	if prefetch < 1 || prefetch > 65535 {
		return wrapInvalid("prefetch must be in [1, 65535], got %d", prefetch)
	}
	return nil
}

// Queue is the polymorphic facade over the AMQP and MQTT unified queues.
// Implementations are broker/amqp.Queue and broker/mqtt.Queue.
type Queue interface {
	Name() string
	IsRecv() bool
	Reliable() bool
	Broadcast() bool

	// Connect starts the inner connect loop. Fails with ErrNoMsgHandler if
	// IsRecv and no handler has been installed.
	Connect() error

	// Close is idempotent; tears down broker resources and fires ack
	// exactly once.
	Close(ack func(error)) error

	Status() Status
	OnStatus(h StatusHandler)
	OnError(h ErrHandler)

	// SetMsgHandler replaces the handler. Must be called before Connect for
	// receivers.
	SetMsgHandler(h MsgHandler)

	// SendMsg publishes payload. Senders only.
	SendMsg(payload []byte, ack func(error)) error

	// Ack settles a received message as successfully processed.
	Ack(msg Message, ack func(error)) error

	// Nack settles a received message as failed/requeue.
	Nack(msg Message, ack func(error)) error
}

// ExchangeAndRoutingKey derives the AMQP exchange/routing-key pair from a
// queue's name and broadcast flag: exchange = broadcast ? name : "",
// routingKey = broadcast ? "" : name.
func ExchangeAndRoutingKey(name string, broadcast bool) (exchange, routingKey string) {
	if broadcast {
		return name, ""
	}
	return "", name
}
