package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testSecret satisfies the 32-character minimum for JWT secrets.
const testSecret = "0123456789abcdef0123456789abcdef"

// testDeviceKey satisfies the 16-character minimum for device keys.
const testDeviceKey = "unit-test-device-key"

// writeConfig writes a YAML config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
  device_key: "`+testDeviceKey+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.TakeoverGraceMS != 1000 {
		t.Errorf("TakeoverGraceMS = %d, want 1000", cfg.Camera.TakeoverGraceMS)
	}
	if cfg.Camera.StaleLeaseMS != 5000 {
		t.Errorf("StaleLeaseMS = %d, want 5000", cfg.Camera.StaleLeaseMS)
	}
	if cfg.Camera.EscalationWindowMS != 10000 {
		t.Errorf("EscalationWindowMS = %d, want 10000", cfg.Camera.EscalationWindowMS)
	}
	if cfg.Camera.Degradation.MinScans != 3 {
		t.Errorf("Degradation.MinScans = %d, want 3", cfg.Camera.Degradation.MinScans)
	}
	if !cfg.Camera.Modes.Scanner.EnableBarcode {
		t.Error("scanner mode should enable barcode by default")
	}
	if cfg.Camera.Modes.ProductPhoto.EnableBarcode {
		t.Error("product photo mode should not enable barcode by default")
	}
	if len(cfg.Camera.PhotoWorkflowOwners) != 2 {
		t.Errorf("PhotoWorkflowOwners = %v, want 2 entries", cfg.Camera.PhotoWorkflowOwners)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
  device_key: "`+testDeviceKey+`"
camera:
  takeover_grace_ms: 2000
  stale_lease_ms: 8000
  photo_workflow_owners: ["ScreenA", "ScreenB", "ScreenC"]
  modes:
    scanner:
      facing: back
      enable_barcode: true
      capture_quality: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Camera.TakeoverGraceMS != 2000 {
		t.Errorf("TakeoverGraceMS = %d, want 2000", cfg.Camera.TakeoverGraceMS)
	}
	if got := cfg.Camera.TakeoverGrace(); got != 2*time.Second {
		t.Errorf("TakeoverGrace() = %v, want 2s", got)
	}
	if len(cfg.Camera.PhotoWorkflowOwners) != 3 {
		t.Errorf("PhotoWorkflowOwners = %v, want 3 entries", cfg.Camera.PhotoWorkflowOwners)
	}
	if cfg.Camera.Modes.Scanner.CaptureQuality != 0.5 {
		t.Errorf("scanner CaptureQuality = %v, want 0.5", cfg.Camera.Modes.Scanner.CaptureQuality)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
  device_key: "`+testDeviceKey+`"
`)

	t.Setenv("VEGANLENS_MQTT_HOST", "broker.example.com")
	t.Setenv("VEGANLENS_DATABASE_PATH", "/var/lib/veganlens/journal.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.Database.Path != "/var/lib/veganlens/journal.db" {
		t.Errorf("Database path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "valid defaults with credentials",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = testSecret
				c.Security.DeviceKey = testDeviceKey
			},
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.DeviceKey = testDeviceKey },
			wantErr: "security.jwt.secret is required",
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = "short"
				c.Security.DeviceKey = testDeviceKey
			},
			wantErr: "at least 32 characters",
		},
		{
			// An empty device key would compare equal to an empty request
			// key and defeat the token exchange entirely.
			name:    "missing device key",
			mutate:  func(c *Config) { c.Security.JWT.Secret = testSecret },
			wantErr: "security.device_key is required",
		},
		{
			name: "short device key",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = testSecret
				c.Security.DeviceKey = "short"
			},
			wantErr: "security.device_key must be at least 16 characters",
		},
		{
			name: "invalid api port",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = testSecret
				c.Security.DeviceKey = testDeviceKey
				c.API.Port = 0
			},
			wantErr: "api.port",
		},
		{
			name: "stale lease below grace",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = testSecret
				c.Security.DeviceKey = testDeviceKey
				c.Camera.StaleLeaseMS = 500
			},
			wantErr: "stale_lease_ms",
		},
		{
			name: "zero degradation scans",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = testSecret
				c.Security.DeviceKey = testDeviceKey
				c.Camera.Degradation.MinScans = 0
			},
			wantErr: "min_scans",
		},
		{
			name: "capture quality out of range",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = testSecret
				c.Security.DeviceKey = testDeviceKey
				c.Camera.Modes.ProductPhoto.CaptureQuality = 1.5
			},
			wantErr: "capture_quality",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Camera.StaleLease(); got != 5*time.Second {
		t.Errorf("StaleLease() = %v, want 5s", got)
	}
	if got := cfg.Camera.Warmup(); got != 500*time.Millisecond {
		t.Errorf("Warmup() = %v, want 500ms", got)
	}
	if got := cfg.Camera.ListenerTTL(); got != 10*time.Minute {
		t.Errorf("ListenerTTL() = %v, want 10m", got)
	}
	if got := cfg.Camera.Degradation.Window(); got != 30*time.Second {
		t.Errorf("Degradation.Window() = %v, want 30s", got)
	}
	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
}
