package models

import "time"

// Unit is the unit a frame was reported in on the wire.
type Unit string

const (
	UnitKg Unit = "kg"
	UnitG  Unit = "g"
)

// WeightSample is one decoded frame from the scale. ValueKg is always
// normalized to kilograms; RawUnit records what the wire said.
type WeightSample struct {
	ValueKg    float64   `json:"value_kg"`
	RawUnit    Unit      `json:"raw_unit"`
	CapturedAt time.Time `json:"captured_at"`
	// StableHint is the device-reported stability flag, when the protocol
	// carries one. Advisory only; the windowed detector is authoritative.
	StableHint *bool `json:"stable_hint,omitempty"`
}

// StabilityState is the detector's verdict on the current reading.
// Recomputed on every sample; superseded by the next computation.
type StabilityState struct {
	IsStable     bool      `json:"is_stable"`
	CurrentValue float64   `json:"current_value"`
	Since        time.Time `json:"since,omitempty"`
}
