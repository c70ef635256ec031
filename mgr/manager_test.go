package mgr

import (
	"log/slog"
	"testing"

	mq "github.com/sylvia-iot/general-mq"
)

// stubQueue drives readiness-aggregation tests without a broker. Status is
// backed by the same StatusEmitter the real drivers compose, so transition
// ordering and deduplication behave identically.
type stubQueue struct {
	name   string
	status *mq.StatusEmitter
}

func newStubQueue(name string) *stubQueue {
	return &stubQueue{name: name, status: mq.NewStatusEmitter("stub:" + name)}
}

func (q *stubQueue) Name() string                          { return q.name }
func (q *stubQueue) IsRecv() bool                          { return true }
func (q *stubQueue) Reliable() bool                        { return true }
func (q *stubQueue) Broadcast() bool                       { return false }
func (q *stubQueue) Connect() error                        { return nil }
func (q *stubQueue) Status() mq.Status                     { return q.status.Status() }
func (q *stubQueue) OnStatus(h mq.StatusHandler)           { q.status.OnStatus(h) }
func (q *stubQueue) OnError(h mq.ErrHandler)               { q.status.OnError(h) }
func (q *stubQueue) SetMsgHandler(h mq.MsgHandler)         {}
func (q *stubQueue) SendMsg(p []byte, a func(error)) error { return mq.ErrQueueIsReceiver }

func (q *stubQueue) Close(ack func(error)) error {
	q.status.SetStatus(mq.Closed)
	if ack != nil {
		ack(nil)
	}
	return nil
}

func (q *stubQueue) Ack(_ mq.Message, ack func(error)) error {
	if ack != nil {
		ack(nil)
	}
	return nil
}

func (q *stubQueue) Nack(_ mq.Message, ack func(error)) error {
	if ack != nil {
		ack(nil)
	}
	return nil
}

func newStubBase(names ...string) (*base, []*stubQueue) {
	queues := make(map[string]mq.Queue, len(names))
	stubs := make([]*stubQueue, 0, len(names))
	for _, n := range names {
		q := newStubQueue(n)
		queues[n] = q
		stubs = append(stubs, q)
	}
	b := &base{queues: queues, status: NotReady, logger: slog.Default()}
	for _, q := range queues {
		q.OnStatus(func(mq.Status) { b.recomputeStatus() })
	}
	return b, stubs
}

// TestManagerReadyIffAllConnected checks that the aggregated status is Ready
// exactly when every owned queue is Connected, and that transitions are
// never emitted twice in a row.
func TestManagerReadyIffAllConnected(t *testing.T) {
	b, stubs := newStubBase("uldata", "dldata", "dldata-resp", "dldata-result")

	var seen []ManagerStatus
	b.onStatus(func(s ManagerStatus) { seen = append(seen, s) })

	for _, q := range stubs {
		q.status.SetStatus(mq.Connecting)
	}
	if b.status_() != NotReady {
		t.Fatal("expected NotReady while queues are connecting")
	}
	if len(seen) != 0 {
		t.Fatalf("expected no transition yet, got %v", seen)
	}

	for _, q := range stubs {
		q.status.SetStatus(mq.Connected)
	}
	if b.status_() != Ready {
		t.Fatal("expected Ready once every queue is Connected")
	}
	if len(seen) != 1 || seen[0] != Ready {
		t.Fatalf("expected a single Ready transition, got %v", seen)
	}

	// Two queues dropping make the manager NotReady, once.
	stubs[0].status.SetStatus(mq.Connecting)
	stubs[1].status.SetStatus(mq.Connecting)
	if b.status_() != NotReady {
		t.Fatal("expected NotReady after a queue lost its connection")
	}
	want := []ManagerStatus{Ready, NotReady}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}

	// Recovery re-emits Ready exactly once.
	stubs[0].status.SetStatus(mq.Connected)
	stubs[1].status.SetStatus(mq.Connected)
	want = []ManagerStatus{Ready, NotReady, Ready}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestManagerStatusString(t *testing.T) {
	if Ready.String() != "ready" || NotReady.String() != "not-ready" {
		t.Error("unexpected ManagerStatus strings")
	}
}
