package mgr

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestHexBytesRoundTrip(t *testing.T) {
	b := HexBytes{0x01, 0xAB, 0xFF}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"01abff"` {
		t.Errorf("MarshalJSON = %s, want \"01abff\"", data)
	}

	var out HexBytes
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if string(out) != string(b) {
		t.Errorf("round trip = %v, want %v", out, b)
	}
}

func TestISOTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 34, 56, 789000000, time.UTC)
	it := ISOTime(now)
	data, err := json.Marshal(it)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "2026-07-30T12:34:56.789") {
		t.Errorf("MarshalJSON = %s", data)
	}

	var out ISOTime
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Time().UnixMilli() != now.UnixMilli() {
		t.Errorf("round trip millis = %d, want %d", out.Time().UnixMilli(), now.UnixMilli())
	}
}

// TestAppDlDataValidate exercises the dldata addressing-validation rules:
// exactly one of DeviceID or (NetworkCode, NetworkAddr) may be set.
func TestAppDlDataValidate(t *testing.T) {
	cases := []struct {
		name    string
		data    AppDlData
		wantErr bool
	}{
		{
			name:    "by device",
			data:    AppDlData{CorrelationID: "1", DeviceID: "device1", Data: HexBytes{0x01}},
			wantErr: false,
		},
		{
			name:    "by network",
			data:    AppDlData{CorrelationID: "2", NetworkCode: "code", NetworkAddr: "addr2", Data: HexBytes{0x02}},
			wantErr: false,
		},
		{
			name:    "missing correlation id",
			data:    AppDlData{DeviceID: "device1"},
			wantErr: true,
		},
		{
			name:    "network code without addr",
			data:    AppDlData{CorrelationID: "1", NetworkCode: "code"},
			wantErr: true,
		},
		{
			name:    "neither device nor network",
			data:    AppDlData{CorrelationID: "1"},
			wantErr: true,
		},
		{
			name:    "both device and network",
			data:    AppDlData{CorrelationID: "1", DeviceID: "device1", NetworkCode: "code", NetworkAddr: "addr"},
			wantErr: true,
		},
	}
	for _, c := range cases {
		err := c.data.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestAppDlDataEncodesHexAndOmitsUnsetAddressing(t *testing.T) {
	data := AppDlData{CorrelationID: "1", DeviceID: "device1", Data: HexBytes{0x01}, Extension: map[string]string{"key": "value"}}
	out, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, `"data":"01"`) {
		t.Errorf("expected hex-encoded data, got %s", s)
	}
	if strings.Contains(s, "networkCode") || strings.Contains(s, "networkAddr") {
		t.Errorf("expected unset addressing fields omitted, got %s", s)
	}
}
