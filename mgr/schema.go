package mgr

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	mq "github.com/sylvia-iot/general-mq"
)

// HexBytes marshals as lowercase hex in JSON, the wire format used for
// every binary field.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "invalid hex data field")
	}
	*b = decoded
	return nil
}

// ISOTime marshals as an ISO-8601 string in JSON, millisecond precision,
// the wire format used for every timestamp.
type ISOTime time.Time

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func (t ISOTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(isoLayout))
}

func (t *ISOTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return errors.Wrap(err, "invalid ISO-8601 time field")
	}
	*t = ISOTime(parsed)
	return nil
}

func (t ISOTime) Time() time.Time { return time.Time(t) }

// AppUlData is the payload an Application manager receives on its uldata
// queue.
type AppUlData struct {
	DataID      string   `json:"dataId"`
	Time        ISOTime  `json:"time"`
	Pub         ISOTime  `json:"pub"`
	DeviceID    string   `json:"deviceId"`
	NetworkID   string   `json:"networkId"`
	NetworkCode string   `json:"networkCode"`
	NetworkAddr string   `json:"networkAddr"`
	IsPublic    bool     `json:"isPublic"`
	Data        HexBytes `json:"data"`
	Extension   any      `json:"extension,omitempty"`
}

// AppDlData is the payload an Application manager publishes on its dldata
// queue. Addressing is exactly one of DeviceID or (NetworkCode,
// NetworkAddr).
type AppDlData struct {
	CorrelationID string   `json:"correlationId"`
	DeviceID      string   `json:"deviceId,omitempty"`
	NetworkCode   string   `json:"networkCode,omitempty"`
	NetworkAddr   string   `json:"networkAddr,omitempty"`
	Data          HexBytes `json:"data"`
	Extension     any      `json:"extension,omitempty"`
}

// Validate enforces the CorrelationID-non-empty and addressing-disjunction
// invariants.
func (d AppDlData) Validate() error {
	if d.CorrelationID == "" {
		return mq.ErrInvalidArgument
	}
	byDevice := d.DeviceID != ""
	byNetwork := d.NetworkCode != "" && d.NetworkAddr != ""
	partialNetwork := (d.NetworkCode != "") != (d.NetworkAddr != "")
	if partialNetwork {
		return mq.ErrInvalidArgument
	}
	if byDevice == byNetwork {
		// both empty, or both given -- exactly one addressing mode allowed
		return mq.ErrInvalidArgument
	}
	return nil
}

// AppDlDataResp is the payload an Application manager receives on its
// dldata-resp queue.
type AppDlDataResp struct {
	CorrelationID string `json:"correlationId"`
	DataID        string `json:"dataId,omitempty"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
}

// AppDlDataResult is the payload an Application manager receives on its
// dldata-result queue.
type AppDlDataResult struct {
	DataID  string `json:"dataId"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// NetUlData is the payload a Network manager publishes on its uldata queue.
type NetUlData struct {
	Time        ISOTime  `json:"time"`
	NetworkAddr string   `json:"networkAddr"`
	Data        HexBytes `json:"data"`
	Extension   any      `json:"extension,omitempty"`
}

// NetDlData is the payload a Network manager receives on its dldata queue.
type NetDlData struct {
	DataID      string   `json:"dataId"`
	Pub         ISOTime  `json:"pub"`
	ExpiresIn   int      `json:"expiresIn"`
	NetworkAddr string   `json:"networkAddr"`
	Data        HexBytes `json:"data"`
	Extension   any      `json:"extension,omitempty"`
}

// NetDlDataResult is the payload a Network manager publishes on its
// dldata-result queue.
type NetDlDataResult struct {
	DataID  string `json:"dataId"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// CtrlOperation enumerates the NetCtrlMsg operations.
type CtrlOperation string

const (
	CtrlAddDevice      CtrlOperation = "add-device"
	CtrlAddDeviceBulk  CtrlOperation = "add-device-bulk"
	CtrlAddDeviceRange CtrlOperation = "add-device-range"
	CtrlDelDevice      CtrlOperation = "del-device"
	CtrlDelDeviceBulk  CtrlOperation = "del-device-bulk"
	CtrlDelDeviceRange CtrlOperation = "del-device-range"
)

// NetCtrlMsg is the payload a Network manager receives on its ctrl queue.
// New carries the operation-specific payload variant as raw JSON; callers
// decode it against the shape implied by Operation.
type NetCtrlMsg struct {
	Operation CtrlOperation   `json:"operation"`
	Time      ISOTime         `json:"time"`
	New       json.RawMessage `json:"new"`
}

// CtrlAddDevicePayload is the "new" shape for add-device.
type CtrlAddDevicePayload struct {
	NetworkAddr string `json:"networkAddr"`
}

// CtrlAddDeviceBulkPayload is the "new" shape for add-device-bulk.
type CtrlAddDeviceBulkPayload struct {
	NetworkAddrs []string `json:"networkAddrs"`
}

// CtrlAddDeviceRangePayload is the "new" shape for add-device-range.
type CtrlAddDeviceRangePayload struct {
	StartAddr string `json:"startAddr"`
	EndAddr   string `json:"endAddr"`
}

// CtrlDelDevicePayload is the "new" shape for del-device.
type CtrlDelDevicePayload struct {
	NetworkAddr string `json:"networkAddr"`
}

// CtrlDelDeviceBulkPayload is the "new" shape for del-device-bulk.
type CtrlDelDeviceBulkPayload struct {
	NetworkAddrs []string `json:"networkAddrs"`
}

// CtrlDelDeviceRangePayload is the "new" shape for del-device-range.
type CtrlDelDeviceRangePayload struct {
	StartAddr string `json:"startAddr"`
	EndAddr   string `json:"endAddr"`
}
