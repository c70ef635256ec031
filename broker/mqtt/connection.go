// Package mqtt wraps MQTT 3.1/5 connections (via
// github.com/eclipse/paho.mqtt.golang) behind the mq.Connection and mq.Queue
// facades. Reconnection is delegated in part to the underlying client, the
// way amenzhinsky/iothub's transport/mqtt configures SetAutoReconnect, with
// a packet-handler registry routing inbound publishes to the right queue.
package mqtt

import (
	"crypto/tls"
	"log/slog"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	mq "github.com/sylvia-iot/general-mq"
)

// packetHandler is a per-queue-name record associating a topic and QoS with
// a message callback.
type packetHandler struct {
	name    string
	topic   string
	qos     byte
	handler mq.MsgHandler
}

// Connection is the MQTT variant of mq.Connection. It owns the
// packet-handler registry consulted by the default publish handler to route
// inbound messages to the correct logical queue.
type Connection struct {
	opts   mq.ConnOptions
	status *mq.StatusEmitter

	mu      sync.RWMutex
	client  paho.Client
	closing bool
	byName  map[string]*packetHandler
	byTopic map[string]*packetHandler
}

// NewConnection constructs an MQTT Connection. The URI scheme must be mqtt or mqtts.
func NewConnection(opts mq.ConnOptions, connOpts ...mq.ConnOption) (*Connection, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	scheme, err := mq.ParseHostURI(opts.HostURI)
	if err != nil {
		return nil, err
	}
	if !scheme.IsMQTT() {
		return nil, errors.Errorf("mqtt connection requires mqtt(s):// scheme, got %q", scheme)
	}
	if opts.ClientID == "" {
		opts.ClientID = mq.RandomID("general-mq-", 12)
	}
	return &Connection{
		opts:    opts,
		status:  mq.NewStatusEmitter("mqtt-connection", connOpts...),
		byName:  make(map[string]*packetHandler),
		byTopic: make(map[string]*packetHandler),
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
	c.status.SetStatus(mq.Connecting)

	o := paho.NewClientOptions()
	o.AddBroker(c.opts.HostURI)
	o.SetClientID(c.opts.ClientID)
	o.SetCleanSession(c.opts.CleanSessionOrDefault())
	o.SetConnectTimeout(c.opts.ConnectTimeout())
	o.SetAutoReconnect(true)
	o.SetMaxReconnectInterval(c.opts.ReconnectInterval())
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(c.opts.ReconnectInterval())
	o.SetOnConnectHandler(func(paho.Client) {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if !closing {
			c.status.SetStatus(mq.Connected)
		}
	})
	o.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return
		}
		c.status.EmitError(errors.Wrap(err, "mqtt connection lost"))
		c.status.SetStatus(mq.Connecting)
	})
	o.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.mu.Lock()
		closing := c.closing
		c.mu.Unlock()
		if !closing {
			c.status.SetStatus(mq.Connecting)
		}
	})
	o.SetDefaultPublishHandler(c.dispatch)
	if c.Scheme() == mq.SchemeMQTTS {
		o.SetTLSConfig(&tls.Config{InsecureSkipVerify: c.opts.Insecure})
	}

	client := paho.NewClient(o)
	c.mu.Lock()
	c.client = client
	c.closing = false
	c.mu.Unlock()

	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.status.EmitError(errors.Wrap(err, "mqtt dial failed"))
			// the client itself keeps retrying per SetConnectRetry; we
			// remain in Connecting until OnConnectHandler fires.
		}
	}()
	return nil
}

// dispatch routes an inbound publish to the handler registered for its
// topic; at most one handler is invoked per match. Shared-subscription
// deliveries arrive on the bare queue name, so an inbound topic with no
// subscription-topic match is looked up as a queue name.
func (c *Connection) dispatch(_ paho.Client, m paho.Message) {
	c.mu.RLock()
	ph := c.byTopic[m.Topic()]
	if ph == nil {
		ph = c.byName[m.Topic()]
	}
	c.mu.RUnlock()
	if ph == nil {
		return
	}
	msg := mq.Message{Payload: m.Payload()}
	ph.handler(msg, func(error) {
		// MQTT ack/nack are no-ops at this layer: QoS settlement already
		// happened at the protocol level by the time this callback runs.
	})
}

// addPacketHandler validates name and topic and records the handler,
// keyed by both queue name and subscription topic for O(1) dispatch.
func (c *Connection) addPacketHandler(name, topic string, reliable bool, handler mq.MsgHandler) error {
	if err := mq.ValidateName(name); err != nil {
		return err
	}
	if !strings.HasSuffix(topic, name) {
		return errors.Errorf("topic %q must end with queue name %q", topic, name)
	}
	qos := byte(0)
	if reliable {
		qos = 1
	}
	ph := &packetHandler{name: name, topic: topic, qos: qos, handler: handler}

	c.mu.Lock()
	c.byName[name] = ph
	c.byTopic[topic] = ph
	c.mu.Unlock()
	return nil
}

// removePacketHandler removes the handler registered under name, if any.
func (c *Connection) removePacketHandler(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ph, ok := c.byName[name]
	if !ok {
		return
	}
	delete(c.byName, name)
	delete(c.byTopic, ph.topic)
}

// Subscribe subscribes to topic at qos and waits for the broker's suback.
func (c *Connection) Subscribe(topic string, qos byte) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return mq.ErrNotConnected
	}
	token := client.Subscribe(topic, qos, nil)
	token.Wait()
	return token.Error()
}

// Unsubscribe removes a subscription.
func (c *Connection) Unsubscribe(topic string) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return nil
	}
	token := client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// Publish publishes payload to topic at qos and waits for the broker to
// settle the publish token.
func (c *Connection) Publish(topic string, qos byte, payload []byte) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return mq.ErrNotConnected
	}
	token := client.Publish(topic, qos, false, payload)
	token.Wait()
	return token.Error()
}

// Close drives the connection to Closed and fires ack exactly once.
func (c *Connection) Close(ack func(error)) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		if ack != nil {
			ack(nil)
		}
		return nil
	}
	c.closing = true
	client := c.client
	c.mu.Unlock()

	c.status.SetStatus(mq.Closing)
	if client != nil {
		client.Disconnect(250)
	}
	c.status.SetStatus(mq.Closed)
	if ack != nil {
		ack(nil)
	}
	return nil
}

// RawClient returns the underlying paho client, or nil before Connect.
func (c *Connection) RawClient() paho.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
