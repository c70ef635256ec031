package mq

import "testing"

// TestStatusEmitterDeduplicatesConsecutive checks that transitions are never
// duplicated consecutively.
func TestStatusEmitterDeduplicatesConsecutive(t *testing.T) {
	e := NewStatusEmitter("test")

	var seen []Status
	e.OnStatus(func(s Status) { seen = append(seen, s) })

	e.SetStatus(Connecting)
	e.SetStatus(Connecting) // duplicate, must not re-fire
	e.SetStatus(Connected)
	e.SetStatus(Connecting)
	e.SetStatus(Closed)

	want := []Status{Connecting, Connected, Connecting, Closed}
	if len(seen) != len(want) {
		t.Fatalf("got %v transitions, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestStatusEmitterStartsClosed(t *testing.T) {
	e := NewStatusEmitter("test")
	if e.Status() != Closed {
		t.Errorf("initial status = %v, want Closed", e.Status())
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		Closed:       "closed",
		Connecting:   "connecting",
		Connected:    "connected",
		Disconnected: "disconnected",
		Closing:      "closing",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}
