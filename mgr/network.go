package mgr

import (
	"encoding/json"

	"github.com/pkg/errors"

	mq "github.com/sylvia-iot/general-mq"
	"github.com/sylvia-iot/general-mq/pool"
)

// NetHandler is the set of typed callbacks a Network manager routes broker
// messages to.
type NetHandler struct {
	OnDlData func(mgr *Network, data NetDlData, done func(error))
	OnCtrl   func(mgr *Network, data NetCtrlMsg, done func(error))
}

// Network is the IoT broker's Network-role manager: owns uldata (send),
// dldata (recv), dldata-result (send), ctrl (recv). UnitID and UnitCode may
// both be empty for a public network.
type Network struct {
	b       *base
	handler NetHandler
}

// NewNetwork validates inputs and constructs the four owned queues on a
// pooled Connection, installing status and message routing.
func NewNetwork(p *pool.Pool, hostURI string, connOpts mq.ConnOptions, prefix string, opts Options, handler NetHandler, mgrOpts ...ManagerOption) (*Network, error) {
	if p == nil {
		return nil, mq.ErrInvalidArgument
	}
	if handler.OnDlData == nil || handler.OnCtrl == nil {
		return nil, mq.ErrInvalidArgument
	}

	b, err := newBase(p, hostURI, connOpts, prefix, opts, true, mgrOpts...)
	if err != nil {
		return nil, err
	}

	n := &Network{b: b, handler: handler}
	n.installHandlers()
	b.start()
	return n, nil
}

func (n *Network) installHandlers() {
	if q, ok := n.b.queues[string(roleDlData)]; ok {
		q.SetMsgHandler(func(msg mq.Message, done func(error)) {
			var raw NetDlData
			if err := json.Unmarshal(msg.Payload, &raw); err != nil {
				n.b.logger.Warn("dropping malformed net dldata payload", "error", err)
				done(nil)
				return
			}
			n.handler.OnDlData(n, raw, done)
		})
	}
	if q, ok := n.b.queues[string(roleCtrl)]; ok {
		q.SetMsgHandler(func(msg mq.Message, done func(error)) {
			var raw NetCtrlMsg
			if err := json.Unmarshal(msg.Payload, &raw); err != nil {
				n.b.logger.Warn("dropping malformed net ctrl payload", "error", err)
				done(nil)
				return
			}
			n.handler.OnCtrl(n, raw, done)
		})
	}
}

// Status returns the current aggregated readiness.
func (n *Network) Status() ManagerStatus { return n.b.status_() }

// OnStatus registers a listener fired only on real readiness transitions.
func (n *Network) OnStatus(h ManagerStatusHandler) { n.b.onStatus(h) }

// SendUlData encodes time as ISO-8601 and data as hex, then publishes on
// the uldata queue.
func (n *Network) SendUlData(data NetUlData, ack func(error)) error {
	q, ok := n.b.queues[string(roleUlData)]
	if !ok {
		return errors.New("uldata queue not owned by this manager")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "unable to encode net uldata payload")
	}
	return q.SendMsg(payload, ack)
}

// SendDlDataResult encodes and publishes on the dldata-result queue.
func (n *Network) SendDlDataResult(data NetDlDataResult, ack func(error)) error {
	q, ok := n.b.queues[string(roleDlDataResult)]
	if !ok {
		return errors.New("dldata-result queue not owned by this manager")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "unable to encode net dldata-result payload")
	}
	return q.SendMsg(payload, ack)
}

// Close closes every owned queue and releases the pooled Connection
// reference.
func (n *Network) Close(ack func(error)) error {
	return n.b.closeAll(ack)
}
