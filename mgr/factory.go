// Package mgr implements the Application and Network managers and the
// data-queue factory that composes the core library into the IoT SDK's
// typed messaging surface.
package mgr

import (
	mq "github.com/sylvia-iot/general-mq"
	amqpbroker "github.com/sylvia-iot/general-mq/broker/amqp"
	mqttbroker "github.com/sylvia-iot/general-mq/broker/mqtt"
)

// Options configures a Manager and, through the data-queue factory, every
// queue it owns.
type Options struct {
	// UnitID and UnitCode must both be empty or both non-empty (empty
	// selects a public network/application).
	UnitID   string
	UnitCode string

	// ID and Name must be non-empty.
	ID   string
	Name string

	// Prefetch is used only when PrefetchSet is true; otherwise every queue
	// gets 100. Rejected (InvalidArgument) when exactly 0 was explicitly
	// requested via PrefetchSet — see ValidateOptions.
	Prefetch int
	// PrefetchSet distinguishes "never specified" (defaults silently) from
	// "explicitly set to 0" (rejected by the factory, even though the
	// Queue-level validator would itself accept 1..65535 only, never 0).
	PrefetchSet bool

	Persistent   bool
	SharedPrefix string
}

const defaultPrefetch = 100

// role is one of the five logical queue roles.
type role string

const (
	roleUlData       role = "uldata"
	roleDlData       role = "dldata"
	roleDlDataResp   role = "dldata-resp"
	roleDlDataResult role = "dldata-result"
	roleCtrl         role = "ctrl"
)

// direction describes whether a manager owns a role as sender or receiver.
type direction int

const (
	dirNone direction = iota
	dirSend
	dirRecv
)

// roleDirections maps role -> direction per manager kind.
func roleDirections(isNetwork bool) map[role]direction {
	if isNetwork {
		return map[role]direction{
			roleUlData:       dirSend,
			roleDlData:       dirRecv,
			roleDlDataResp:   dirNone,
			roleDlDataResult: dirSend,
			roleCtrl:         dirRecv,
		}
	}
	return map[role]direction{
		roleUlData:       dirRecv,
		roleDlData:       dirSend,
		roleDlDataResp:   dirRecv,
		roleDlDataResult: dirRecv,
		roleCtrl:         dirNone,
	}
}

// ValidateOptions enforces the manager-level validation rules, distinct
// from (and stricter than) mq.QueueOptions.Validate / mq.ValidatePrefetch.
func ValidateOptions(o Options) error {
	if (o.UnitID == "") != (o.UnitCode == "") {
		return mq.ErrInvalidArgument
	}
	if o.ID == "" {
		return mq.ErrInvalidArgument
	}
	if o.Name == "" {
		return mq.ErrInvalidArgument
	}
	if o.PrefetchSet {
		if o.Prefetch == 0 {
			// Explicitly rejected at the factory level even though the
			// Queue's own validator accepts 1..65535 only: do not silently
			// coerce 0 to the default here.
			return mq.ErrInvalidArgument
		}
		if o.Prefetch < 1 || o.Prefetch > 65535 {
			return mq.ErrInvalidArgument
		}
	}
	return nil
}

func (o Options) prefetchOrDefault() int {
	if o.PrefetchSet {
		return o.Prefetch
	}
	return defaultPrefetch
}

// queueName builds "[prefix].[unitCode|"_"].[name].<role>".
func queueName(prefix, unitCode, name string, r role) string {
	unit := unitCode
	if unit == "" {
		unit = "_"
	}
	return prefix + "." + unit + "." + name + "." + string(r)
}

// BuildQueues constructs the fixed set of Queues a manager of kind isNetwork
// needs on conn, following the naming scheme and direction table above. All
// created queues share Reliable=true, Broadcast=false.
func BuildQueues(conn mq.Connection, prefix string, o Options, isNetwork bool) (map[string]mq.Queue, error) {
	if err := ValidateOptions(o); err != nil {
		return nil, err
	}

	queues := make(map[string]mq.Queue)
	for r, dir := range roleDirections(isNetwork) {
		if dir == dirNone {
			continue
		}
		opts := mq.QueueOptions{
			Name:         queueName(prefix, o.UnitCode, o.Name, r),
			IsRecv:       dir == dirRecv,
			Reliable:     true,
			Broadcast:    false,
			Prefetch:     o.prefetchOrDefault(),
			Persistent:   o.Persistent,
			SharedPrefix: o.SharedPrefix,
		}
		q, err := newQueue(conn, opts)
		if err != nil {
			return nil, err
		}
		queues[string(r)] = q
	}
	return queues, nil
}

// newQueue dispatches Queue construction on the concrete Connection variant,
// the same way pool.GetConnection dispatches Connection construction on
// scheme.
func newQueue(conn mq.Connection, opts mq.QueueOptions) (mq.Queue, error) {
	switch c := conn.(type) {
	case *amqpbroker.Connection:
		return amqpbroker.NewQueue(opts, c)
	case *mqttbroker.Connection:
		return mqttbroker.NewQueue(opts, c)
	default:
		return nil, mq.ErrInvalidArgument
	}
}
