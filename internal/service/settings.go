package service

import (
	"context"
	"errors"
	"strings"

	"weigh_station/internal/config"
	"weigh_station/internal/logger"
)

// Validation errors for settings updates.
var (
	ErrSettingsIncomplete = errors.New("device_no, api_host, api_port, user_id and secret_key are required")
	ErrInvalidPort        = errors.New("api_port must be between 1 and 65535")
)

// SettingsService rewrites the device configuration. Updates go through the
// config store so the running pipeline picks them up on its next snapshot.
type SettingsService struct {
	cfg ConfigStore
	log *logger.Logger
}

func NewSettingsService(cfg ConfigStore, log *logger.Logger) *SettingsService {
	return &SettingsService{cfg: cfg, log: log.Named("settings")}
}

// Current returns the active device configuration without the secret.
func (s *SettingsService) Current() SettingsView {
	return settingsView(s.cfg.Snapshot().Device)
}

// Update validates and persists a full replacement of the device settings.
// Partial updates are not supported: the operator confirms the whole form.
func (s *SettingsService) Update(ctx context.Context, p SettingsParams) (SettingsView, error) {
	p.DeviceNo = strings.TrimSpace(p.DeviceNo)
	p.APIHost = strings.TrimSpace(p.APIHost)
	p.UserID = strings.TrimSpace(p.UserID)
	p.SecretKey = strings.TrimSpace(p.SecretKey)
	p.SerialPort = strings.TrimSpace(p.SerialPort)

	if p.DeviceNo == "" || p.APIHost == "" || p.UserID == "" || p.SecretKey == "" {
		return SettingsView{}, ErrSettingsIncomplete
	}
	if p.APIPort < 1 || p.APIPort > 65535 {
		return SettingsView{}, ErrInvalidPort
	}

	snap, err := s.cfg.UpdateDevice(config.Device{
		DeviceNo:   p.DeviceNo,
		APIHost:    p.APIHost,
		APIPort:    p.APIPort,
		UserID:     p.UserID,
		SecretKey:  p.SecretKey,
		SerialPort: p.SerialPort,
	})
	if err != nil {
		return SettingsView{}, err
	}

	s.log.Infow("device settings updated",
		"device_no", snap.Device.DeviceNo,
		"api_host", snap.Device.APIHost,
		"api_port", snap.Device.APIPort,
		"user_id", snap.Device.UserID,
	)
	return settingsView(snap.Device), nil
}

func settingsView(d config.Device) SettingsView {
	return SettingsView{
		DeviceNo:     d.DeviceNo,
		APIHost:      d.APIHost,
		APIPort:      d.APIPort,
		UserID:       d.UserID,
		SerialPort:   d.SerialPort,
		SecretKeySet: d.SecretKey != "" && d.SecretKey != config.PlaceholderSecretKey,
		Configured:   d.Credentialed(),
	}
}
