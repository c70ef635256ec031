package mq

import "testing"

func TestQueueOptionsValidate(t *testing.T) {
	cases := []struct {
		name    string
		opts    QueueOptions
		wantErr bool
	}{
		{"valid", QueueOptions{Name: "app.unit.code.uldata"}, false},
		{"bad name", QueueOptions{Name: "Bad Name"}, true},
		{"negative reconnect", QueueOptions{Name: "ok", ReconnectMillis: -1}, true},
	}
	for _, c := range cases {
		err := c.opts.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestValidatePrefetch(t *testing.T) {
	cases := []struct {
		prefetch int
		wantErr  bool
	}{
		{1, false},
		{100, false},
		{65535, false},
		{0, true},
		{65536, true},
		{-1, true},
	}
	for _, c := range cases {
		err := ValidatePrefetch(c.prefetch)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidatePrefetch(%d) error = %v, wantErr %v", c.prefetch, err, c.wantErr)
		}
	}
}

func TestExchangeAndRoutingKey(t *testing.T) {
	ex, rk := ExchangeAndRoutingKey("name", true)
	if ex != "name" || rk != "" {
		t.Errorf("broadcast: got (%q, %q)", ex, rk)
	}
	ex, rk = ExchangeAndRoutingKey("name", false)
	if ex != "" || rk != "name" {
		t.Errorf("unicast: got (%q, %q)", ex, rk)
	}
}

func TestQueueOptionsApplyDefaults(t *testing.T) {
	o := QueueOptions{Name: "ok"}
	o.ApplyDefaults()
	if o.ReconnectMillis != DefaultReconnectMillis {
		t.Errorf("ReconnectMillis = %d, want %d", o.ReconnectMillis, DefaultReconnectMillis)
	}
}
