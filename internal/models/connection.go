package models

import "time"

// Serial link states. One Connection per process, owned by the link.
const (
	ConnDisconnected = "DISCONNECTED"
	ConnConnecting   = "CONNECTING"
	ConnConnected    = "CONNECTED"
)

// Connection describes the serial link to the scale.
type Connection struct {
	PortName  string    `json:"port_name,omitempty"`
	BaudRate  int       `json:"baud_rate,omitempty"`
	Status    string    `json:"status"` // DISCONNECTED | CONNECTING | CONNECTED
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScaleStatus is the snapshot the display collaborator reads: link state,
// the most recent sample (nil until the first decoded frame after connect),
// and the detector's verdict.
type ScaleStatus struct {
	Connection Connection     `json:"connection"`
	Sample     *WeightSample  `json:"sample,omitempty"`
	Stability  StabilityState `json:"stability"`
}
