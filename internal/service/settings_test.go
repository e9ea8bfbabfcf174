package service

import (
	"context"
	"errors"
	"testing"

	"weigh_station/internal/config"
	"weigh_station/internal/logger"
)

func newTestSettings(cfg *cfgStub) *SettingsService {
	return NewSettingsService(cfg, logger.Get(logger.ErrorLevel))
}

func validSettings() SettingsParams {
	return SettingsParams{
		DeviceNo:  "WS-02",
		APIHost:   "warehouse.example.com",
		APIPort:   8443,
		UserID:    "operator",
		SecretKey: "n3w-secret",
	}
}

func TestSettingsService_Update_PersistsTrimmedValues(t *testing.T) {
	cfg := &cfgStub{snap: testSnapshot()}
	svc := newTestSettings(cfg)

	p := validSettings()
	p.DeviceNo = "  WS-02  "
	p.APIHost = " warehouse.example.com "
	p.SerialPort = " /dev/ttyUSB3 "

	view, err := svc.Update(context.Background(), p)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if len(cfg.updated) != 1 {
		t.Fatalf("expected 1 UpdateDevice call, got %d", len(cfg.updated))
	}
	saved := cfg.updated[0]
	if saved.DeviceNo != "WS-02" || saved.APIHost != "warehouse.example.com" || saved.SerialPort != "/dev/ttyUSB3" {
		t.Errorf("values not trimmed before persisting: %+v", saved)
	}
	if saved.SecretKey != "n3w-secret" {
		t.Errorf("secret not persisted")
	}

	if view.DeviceNo != "WS-02" || view.APIPort != 8443 {
		t.Errorf("view does not reflect the saved settings: %+v", view)
	}
	if !view.SecretKeySet || !view.Configured {
		t.Errorf("view should report configured credentials: %+v", view)
	}
}

func TestSettingsService_Update_Validation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*SettingsParams)
		wantErr error
	}{
		{"missing device number", func(p *SettingsParams) { p.DeviceNo = "  " }, ErrSettingsIncomplete},
		{"missing host", func(p *SettingsParams) { p.APIHost = "" }, ErrSettingsIncomplete},
		{"missing user id", func(p *SettingsParams) { p.UserID = "" }, ErrSettingsIncomplete},
		{"missing secret", func(p *SettingsParams) { p.SecretKey = "" }, ErrSettingsIncomplete},
		{"port zero", func(p *SettingsParams) { p.APIPort = 0 }, ErrInvalidPort},
		{"port out of range", func(p *SettingsParams) { p.APIPort = 70000 }, ErrInvalidPort},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := &cfgStub{snap: testSnapshot()}
			svc := newTestSettings(cfg)

			p := validSettings()
			tc.mutate(&p)

			_, err := svc.Update(context.Background(), p)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if len(cfg.updated) != 0 {
				t.Fatalf("invalid settings must not be persisted")
			}
		})
	}
}

func TestSettingsService_Current_MasksSecret(t *testing.T) {
	snap := testSnapshot()
	snap.Device.UserID = config.PlaceholderUserID
	snap.Device.SecretKey = config.PlaceholderSecretKey
	svc := newTestSettings(&cfgStub{snap: snap})

	view := svc.Current()
	if view.SecretKeySet {
		t.Errorf("placeholder secret must not count as set")
	}
	if view.Configured {
		t.Errorf("placeholder credentials must not count as configured")
	}
	if view.DeviceNo != snap.Device.DeviceNo {
		t.Errorf("device number missing from view")
	}
}
