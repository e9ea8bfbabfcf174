package service

import "time"

// UploadParams is one user-confirmed capture request. The weight itself is
// never a parameter: it is read from the live scale at enqueue time.
type UploadParams struct {
	ScanNo string
	// Parcel dimensions in centimeters; nil means not measured.
	LengthCm *float64
	WidthCm  *float64
	HeightCm *float64
}

// HistoryFilter selects upload records by time range and status.
type HistoryFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Status string    // "", "PENDING", "SENT", "FAILED"
}

// SettingsParams is the full device configuration. Every field except
// SerialPort is required; SerialPort empty means auto-detect.
type SettingsParams struct {
	DeviceNo   string
	APIHost    string
	APIPort    int
	UserID     string
	SecretKey  string
	SerialPort string
}

// SettingsView is what the settings surface returns: the configuration
// without the secret itself.
type SettingsView struct {
	DeviceNo     string `json:"device_no"`
	APIHost      string `json:"api_host"`
	APIPort      int    `json:"api_port"`
	UserID       string `json:"user_id"`
	SerialPort   string `json:"serial_port,omitempty"`
	SecretKeySet bool   `json:"secret_key_set"`
	Configured   bool   `json:"configured"`
}
