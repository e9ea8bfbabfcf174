package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Placeholder credentials shipped in the default config. Uploads refuse to
// leave the station until both are replaced.
const (
	PlaceholderUserID    = "USER_ID"
	PlaceholderSecretKey = "SECURITY_KEY"
)

// Device is the per-session device and intake API configuration.
// Read-only to the pipeline; a settings change produces a whole new Snapshot.
type Device struct {
	DeviceNo   string `json:"device_no" mapstructure:"device_no"`
	APIHost    string `json:"api_host" mapstructure:"api_host"`
	APIPort    int    `json:"api_port" mapstructure:"api_port"`
	UserID     string `json:"user_id" mapstructure:"user_id"`
	SecretKey  string `json:"-" mapstructure:"secret_key"`
	SerialPort string `json:"serial_port,omitempty" mapstructure:"serial_port"` // optional override; empty = auto-detect
}

// Credentialed reports whether the API credentials were actually configured.
func (d Device) Credentialed() bool {
	return d.UserID != "" && d.SecretKey != "" &&
		d.UserID != PlaceholderUserID && d.SecretKey != PlaceholderSecretKey
}

// Scale holds serial link tuning.
type Scale struct {
	Protocol    string        // "e550" | "ascii"
	Baud        int           // primary rate
	ResetBaud   int           // E550 wake-cycle rate
	ReadTimeout time.Duration // per-read timeout so shutdown is honored
	MaxBackoff  time.Duration // reconnect backoff cap
}

// Stability holds the detector constants.
type Stability struct {
	Window  int           // samples required (K)
	Span    time.Duration // minimum steady duration (T)
	Epsilon float64       // kg; max spread inside the window
}

// Upload holds retry policy for the intake API.
type Upload struct {
	MaxAttempts int
	Backoff     time.Duration // first retry delay; doubles per attempt
	Timeout     time.Duration // per-request HTTP timeout
}

// Auth gates the settings surface.
type Auth struct {
	SettingsPassword string
	SigningKey       string
	TokenTTL         time.Duration
}

// MQTT configures the optional event relay. Empty Broker disables it.
type MQTT struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Snapshot is one immutable view of the whole configuration. Components keep
// the Store and take a fresh Snapshot per operation instead of sharing
// mutable fields.
type Snapshot struct {
	Port      string // HTTP listen port
	DBPath    string
	Device    Device
	Scale     Scale
	Stability Stability
	Upload    Upload
	Auth      Auth
	MQTT      MQTT
}

// Store owns the current snapshot and the viper file behind it.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	path string // where UpdateDevice persists
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db.path", "weigh_station.db")

	viper.SetDefault("device.device_no", "DEVICE_001")
	viper.SetDefault("device.api_host", "api.example.com")
	viper.SetDefault("device.api_port", 80)
	viper.SetDefault("device.user_id", PlaceholderUserID)
	viper.SetDefault("device.secret_key", PlaceholderSecretKey)
	viper.SetDefault("device.serial_port", "")

	viper.SetDefault("scale.protocol", "e550")
	viper.SetDefault("scale.baud", 9600)
	viper.SetDefault("scale.reset_baud", 19200)
	viper.SetDefault("scale.read_timeout", "250ms")
	viper.SetDefault("scale.reconnect_max_backoff", "10s")

	viper.SetDefault("stability.window", 5)
	viper.SetDefault("stability.span", "1.5s")
	viper.SetDefault("stability.epsilon", 0.005)

	viper.SetDefault("upload.max_attempts", 3)
	viper.SetDefault("upload.backoff", "1s")
	viper.SetDefault("upload.timeout", "10s")

	viper.SetDefault("auth.settings_password", "password")
	viper.SetDefault("auth.signing_key", "local-station-secret")
	viper.SetDefault("auth.token_ttl", "1h")

	viper.SetDefault("mqtt.broker", "")
	viper.SetDefault("mqtt.client_id", "weigh-station")
	viper.SetDefault("mqtt.topic_prefix", "weighstation")
}

// Load reads configs/config.yml (creating nothing) and returns a Store with
// the initial snapshot. A missing file is fine: defaults apply and the file
// is created on the first settings update.
func Load() (*Store, error) {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	s := &Store{path: "configs/config.yml"}
	s.snap = fromViper()
	return s, nil
}

func fromViper() Snapshot {
	return Snapshot{
		Port:   viper.GetString("port"),
		DBPath: viper.GetString("db.path"),
		Device: Device{
			DeviceNo:   viper.GetString("device.device_no"),
			APIHost:    viper.GetString("device.api_host"),
			APIPort:    viper.GetInt("device.api_port"),
			UserID:     viper.GetString("device.user_id"),
			SecretKey:  viper.GetString("device.secret_key"),
			SerialPort: viper.GetString("device.serial_port"),
		},
		Scale: Scale{
			Protocol:    viper.GetString("scale.protocol"),
			Baud:        viper.GetInt("scale.baud"),
			ResetBaud:   viper.GetInt("scale.reset_baud"),
			ReadTimeout: viper.GetDuration("scale.read_timeout"),
			MaxBackoff:  viper.GetDuration("scale.reconnect_max_backoff"),
		},
		Stability: Stability{
			Window:  viper.GetInt("stability.window"),
			Span:    viper.GetDuration("stability.span"),
			Epsilon: viper.GetFloat64("stability.epsilon"),
		},
		Upload: Upload{
			MaxAttempts: viper.GetInt("upload.max_attempts"),
			Backoff:     viper.GetDuration("upload.backoff"),
			Timeout:     viper.GetDuration("upload.timeout"),
		},
		Auth: Auth{
			SettingsPassword: viper.GetString("auth.settings_password"),
			SigningKey:       viper.GetString("auth.signing_key"),
			TokenTTL:         viper.GetDuration("auth.token_ttl"),
		},
		MQTT: MQTT{
			Broker:      viper.GetString("mqtt.broker"),
			ClientID:    viper.GetString("mqtt.client_id"),
			TopicPrefix: viper.GetString("mqtt.topic_prefix"),
		},
	}
}

// Snapshot returns the current immutable configuration view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// UpdateDevice persists new device settings and swaps in a new snapshot.
// Validation belongs to the settings service; this only writes and swaps.
func (s *Store) UpdateDevice(d Device) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	viper.Set("device.device_no", d.DeviceNo)
	viper.Set("device.api_host", d.APIHost)
	viper.Set("device.api_port", d.APIPort)
	viper.Set("device.user_id", d.UserID)
	viper.Set("device.secret_key", d.SecretKey)
	viper.Set("device.serial_port", d.SerialPort)

	if err := viper.WriteConfigAs(s.path); err != nil {
		return Snapshot{}, fmt.Errorf("write config: %w", err)
	}

	next := s.snap
	next.Device = d
	s.snap = next
	return next, nil
}
