package mgr

import (
	"testing"

	mq "github.com/sylvia-iot/general-mq"
	amqpbroker "github.com/sylvia-iot/general-mq/broker/amqp"
)

// TestValidateOptionsUnitEmptiness checks the UnitID/UnitCode emptiness rule
// and the factory's stricter prefetch validation.
func TestValidateOptionsUnitEmptiness(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"both empty (public)", Options{ID: "id", Name: "name"}, false},
		{"both set", Options{UnitID: "u", UnitCode: "u", ID: "id", Name: "name"}, false},
		{"only id set", Options{UnitID: "u", ID: "id", Name: "name"}, true},
		{"only code set", Options{UnitCode: "u", ID: "id", Name: "name"}, true},
		{"empty id", Options{Name: "name"}, true},
		{"empty name", Options{ID: "id"}, true},
		{"prefetch zero rejected", Options{ID: "id", Name: "name", Prefetch: 0, PrefetchSet: true}, true},
		{"prefetch valid", Options{ID: "id", Name: "name", Prefetch: 50, PrefetchSet: true}, false},
		{"prefetch too big", Options{ID: "id", Name: "name", Prefetch: 65536, PrefetchSet: true}, true},
	}
	for _, c := range cases {
		err := ValidateOptions(c.opts)
		if (err != nil) != c.wantErr {
			t.Errorf("%s: ValidateOptions() error = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestQueueName(t *testing.T) {
	got := queueName("broker", "", "app1", roleUlData)
	want := "broker._.app1.uldata"
	if got != want {
		t.Errorf("queueName() = %q, want %q", got, want)
	}

	got = queueName("broker", "unit1", "app1", roleDlDataResp)
	want = "broker.unit1.app1.dldata-resp"
	if got != want {
		t.Errorf("queueName() = %q, want %q", got, want)
	}
}

// TestBuildQueuesDirectionTable covers the role/direction table for both
// manager kinds, without dialing any broker (amqp Connection construction
// does not connect).
func TestBuildQueuesDirectionTable(t *testing.T) {
	conn, err := amqpbroker.NewConnection(mq.ConnOptions{HostURI: "amqp://localhost/"})
	if err != nil {
		t.Fatal(err)
	}

	appQueues, err := BuildQueues(conn, "broker", Options{ID: "id", Name: "app1"}, false)
	if err != nil {
		t.Fatal(err)
	}
	wantApp := map[string]bool{"uldata": true, "dldata": false, "dldata-resp": true, "dldata-result": true}
	if len(appQueues) != len(wantApp) {
		t.Fatalf("application manager got %d queues, want %d", len(appQueues), len(wantApp))
	}
	for role, recv := range wantApp {
		q, ok := appQueues[role]
		if !ok {
			t.Fatalf("missing application queue %q", role)
		}
		if q.IsRecv() != recv {
			t.Errorf("application queue %q IsRecv() = %v, want %v", role, q.IsRecv(), recv)
		}
	}
	if _, ok := appQueues["ctrl"]; ok {
		t.Error("application manager must not own a ctrl queue")
	}

	netQueues, err := BuildQueues(conn, "broker", Options{ID: "id", Name: "net1"}, true)
	if err != nil {
		t.Fatal(err)
	}
	wantNet := map[string]bool{"uldata": false, "dldata": true, "dldata-result": false, "ctrl": true}
	if len(netQueues) != len(wantNet) {
		t.Fatalf("network manager got %d queues, want %d", len(netQueues), len(wantNet))
	}
	for role, recv := range wantNet {
		q, ok := netQueues[role]
		if !ok {
			t.Fatalf("missing network queue %q", role)
		}
		if q.IsRecv() != recv {
			t.Errorf("network queue %q IsRecv() = %v, want %v", role, q.IsRecv(), recv)
		}
	}
	if _, ok := netQueues["dldata-resp"]; ok {
		t.Error("network manager must not own a dldata-resp queue")
	}
}
