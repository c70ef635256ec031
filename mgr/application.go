package mgr

import (
	"encoding/json"

	"github.com/pkg/errors"

	mq "github.com/sylvia-iot/general-mq"
	"github.com/sylvia-iot/general-mq/pool"
)

// AppHandler is the set of typed callbacks an Application manager routes
// broker messages to.
type AppHandler struct {
	OnUlData       func(mgr *Application, data AppUlData, done func(error))
	OnDlDataResp   func(mgr *Application, data AppDlDataResp, done func(error))
	OnDlDataResult func(mgr *Application, data AppDlDataResult, done func(error))
}

// Application is the IoT broker's Application-role manager: owns uldata
// (recv), dldata (send), dldata-resp (recv), dldata-result (recv).
type Application struct {
	b       *base
	handler AppHandler
}

// NewApplication validates inputs and constructs the four owned queues on a
// pooled Connection, installing status and message routing. UnitID must be
// non-empty for an Application manager.
func NewApplication(p *pool.Pool, hostURI string, connOpts mq.ConnOptions, prefix string, opts Options, handler AppHandler, mgrOpts ...ManagerOption) (*Application, error) {
	if p == nil {
		return nil, mq.ErrInvalidArgument
	}
	if opts.UnitID == "" {
		return nil, mq.ErrInvalidArgument
	}
	if handler.OnUlData == nil || handler.OnDlDataResp == nil || handler.OnDlDataResult == nil {
		return nil, mq.ErrInvalidArgument
	}

	b, err := newBase(p, hostURI, connOpts, prefix, opts, false, mgrOpts...)
	if err != nil {
		return nil, err
	}

	app := &Application{b: b, handler: handler}
	app.installHandlers()
	b.start()
	return app, nil
}

func (a *Application) installHandlers() {
	if q, ok := a.b.queues[string(roleUlData)]; ok {
		q.SetMsgHandler(func(msg mq.Message, done func(error)) {
			var raw AppUlData
			if err := json.Unmarshal(msg.Payload, &raw); err != nil {
				a.b.logger.Warn("dropping malformed app uldata payload", "error", err)
				done(nil) // malformed payloads are silently acked
				return
			}
			a.handler.OnUlData(a, raw, done)
		})
	}
	if q, ok := a.b.queues[string(roleDlDataResp)]; ok {
		q.SetMsgHandler(func(msg mq.Message, done func(error)) {
			var raw AppDlDataResp
			if err := json.Unmarshal(msg.Payload, &raw); err != nil {
				a.b.logger.Warn("dropping malformed app dldata-resp payload", "error", err)
				done(nil)
				return
			}
			a.handler.OnDlDataResp(a, raw, done)
		})
	}
	if q, ok := a.b.queues[string(roleDlDataResult)]; ok {
		q.SetMsgHandler(func(msg mq.Message, done func(error)) {
			var raw AppDlDataResult
			if err := json.Unmarshal(msg.Payload, &raw); err != nil {
				a.b.logger.Warn("dropping malformed app dldata-result payload", "error", err)
				done(nil)
				return
			}
			a.handler.OnDlDataResult(a, raw, done)
		})
	}
}

// Status returns the current aggregated readiness.
func (a *Application) Status() ManagerStatus { return a.b.status_() }

// OnStatus registers a listener fired only on real readiness transitions.
func (a *Application) OnStatus(h ManagerStatusHandler) { a.b.onStatus(h) }

// SendDlData validates and publishes data on the dldata queue, encoding
// data as hex and omitting unset addressing fields.
func (a *Application) SendDlData(data AppDlData, ack func(error)) error {
	if err := data.Validate(); err != nil {
		return err
	}
	q, ok := a.b.queues[string(roleDlData)]
	if !ok {
		return errors.New("dldata queue not owned by this manager")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "unable to encode app dldata payload")
	}
	return q.SendMsg(payload, ack)
}

// Close closes every owned queue and releases the pooled Connection
// reference.
func (a *Application) Close(ack func(error)) error {
	return a.b.closeAll(ack)
}
