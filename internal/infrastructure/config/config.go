package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for VeganLens Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Security  SecurityConfig  `yaml:"security"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Camera    CameraConfig    `yaml:"camera"`
}

// ServiceConfig contains instance identification.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// SecurityConfig contains API authentication settings.
type SecurityConfig struct {
	JWT       JWTConfig `yaml:"jwt"`
	DeviceKey string    `yaml:"device_key"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
}

// DatabaseConfig contains SQLite settings for the diagnostics journal.
// The camera core itself is fully transient; the journal is optional.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the capture
// surface bridge. When disabled, the loopback surface is used instead.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// CameraConfig contains the coordination thresholds and per-mode defaults.
//
// The timing values are empirically tuned on real hardware. They are exposed
// here rather than hardcoded so field deployments can adjust them without a
// rebuild; the defaults match the values the mobile app shipped with.
type CameraConfig struct {
	// TakeoverGraceMS is how long a fresh lease is protected from takeover
	// by owners outside the arbitration matrix.
	TakeoverGraceMS int `yaml:"takeover_grace_ms"`

	// StaleLeaseMS is the age past which any owner may clear a lease on
	// transition to inactive.
	StaleLeaseMS int `yaml:"stale_lease_ms"`

	// EscalationWindowMS is the window within which a repeated reset trigger
	// escalates to a full hardware reset.
	EscalationWindowMS int `yaml:"escalation_window_ms"`

	// WarmupMS is the settle delay after a reset-triggering return to
	// scanner mode before the switch call returns.
	WarmupMS int `yaml:"warmup_ms"`

	// SlowTransitionMS is the duration above which a transition is logged
	// as slow and counted in metrics.
	SlowTransitionMS int `yaml:"slow_transition_ms"`

	// ListenerTTLMinutes bounds event listener lifetime. Expiry is a logged
	// bug signal, not the primary unsubscription mechanism.
	ListenerTTLMinutes int `yaml:"listener_ttl_minutes"`

	// Degradation tunes the scan-rate heuristic that triggers proactive
	// focus recovery while in scanner mode.
	Degradation DegradationConfig `yaml:"degradation"`

	// PhotoWorkflowOwners lists the owner identities treated as photo
	// workflow screens by the arbitration matrix.
	PhotoWorkflowOwners []string `yaml:"photo_workflow_owners"`

	// Modes holds the per-mode hardware defaults.
	Modes ModesConfig `yaml:"modes"`
}

// DegradationConfig tunes the scan-rate degradation heuristic.
type DegradationConfig struct {
	WindowMS        int `yaml:"window_ms"`
	MinScans        int `yaml:"min_scans"`
	CheckIntervalMS int `yaml:"check_interval_ms"`
}

// ModesConfig holds the default hardware configuration per camera mode.
type ModesConfig struct {
	Scanner          ModeDefaults `yaml:"scanner"`
	ProductPhoto     ModeDefaults `yaml:"product_photo"`
	IngredientsPhoto ModeDefaults `yaml:"ingredients_photo"`
}

// ModeDefaults is the declarative hardware intent for one camera mode.
type ModeDefaults struct {
	Facing             string   `yaml:"facing"`
	EnableBarcode      bool     `yaml:"enable_barcode"`
	BarcodeTypes       []string `yaml:"barcode_types"`
	EnablePhotoCapture bool     `yaml:"enable_photo_capture"`
	CaptureQuality     float64  `yaml:"capture_quality"`
	Autofocus          string   `yaml:"autofocus"`
	FocusDepth         float64  `yaml:"focus_depth"`
	Zoom               float64  `yaml:"zoom"`
	TouchFocus         bool     `yaml:"touch_focus"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VEGANLENS_SECTION_KEY
// For example: VEGANLENS_DATABASE_PATH, VEGANLENS_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The camera timing defaults are the values the arbitration and recovery
// behaviour was tuned against; treat changes as product decisions.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "veganlens-core-001",
			Name: "VeganLens Camera Core",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60,
			},
		},
		Database: DatabaseConfig{
			Enabled:     false,
			Path:        "./data/veganlens.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "veganlens-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Camera: CameraConfig{
			TakeoverGraceMS:    1000,
			StaleLeaseMS:       5000,
			EscalationWindowMS: 10000,
			WarmupMS:           500,
			SlowTransitionMS:   1000,
			ListenerTTLMinutes: 10,
			Degradation: DegradationConfig{
				WindowMS:        30000,
				MinScans:        3,
				CheckIntervalMS: 5000,
			},
			PhotoWorkflowOwners: []string{"ProductPhotoScreen", "IngredientsPhotoScreen"},
			Modes: ModesConfig{
				Scanner: ModeDefaults{
					Facing:        "back",
					EnableBarcode: true,
					BarcodeTypes: []string{
						"ean13", "ean8", "upc_a", "upc_e", "code128", "qr",
					},
					EnablePhotoCapture: false,
					CaptureQuality:     0.7,
					Autofocus:          "on",
					TouchFocus:         true,
				},
				ProductPhoto: ModeDefaults{
					Facing:             "back",
					EnableBarcode:      false,
					EnablePhotoCapture: true,
					CaptureQuality:     0.85,
					Autofocus:          "on",
					TouchFocus:         true,
				},
				IngredientsPhoto: ModeDefaults{
					Facing:             "back",
					EnableBarcode:      false,
					EnablePhotoCapture: true,
					CaptureQuality:     0.9,
					Autofocus:          "on",
					TouchFocus:         true,
				},
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VEGANLENS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VEGANLENS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("VEGANLENS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VEGANLENS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VEGANLENS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("VEGANLENS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("VEGANLENS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Secrets should always come from the environment in production.
	if v := os.Getenv("VEGANLENS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("VEGANLENS_DEVICE_KEY"); v != "" {
		cfg.Security.DeviceKey = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled")
	}

	// The API is the only remote surface onto the camera; a weak secret
	// would let any client seize the camera lease.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set VEGANLENS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	// The device key is the only credential gating token issue; an empty
	// key would compare equal to an empty request and hand out tokens.
	const minDeviceKeyLength = 16
	if c.Security.DeviceKey == "" {
		errs = append(errs, "security.device_key is required (set VEGANLENS_DEVICE_KEY environment variable)")
	} else if len(c.Security.DeviceKey) < minDeviceKeyLength {
		errs = append(errs, "security.device_key must be at least 16 characters")
	}

	if c.Camera.TakeoverGraceMS <= 0 {
		errs = append(errs, "camera.takeover_grace_ms must be positive")
	}
	if c.Camera.StaleLeaseMS < c.Camera.TakeoverGraceMS {
		errs = append(errs, "camera.stale_lease_ms must not be below camera.takeover_grace_ms")
	}
	if c.Camera.EscalationWindowMS <= 0 {
		errs = append(errs, "camera.escalation_window_ms must be positive")
	}
	if c.Camera.Degradation.MinScans < 1 {
		errs = append(errs, "camera.degradation.min_scans must be at least 1")
	}
	if c.Camera.Degradation.WindowMS <= 0 {
		errs = append(errs, "camera.degradation.window_ms must be positive")
	}

	for _, m := range []struct {
		name string
		def  ModeDefaults
	}{
		{"scanner", c.Camera.Modes.Scanner},
		{"product_photo", c.Camera.Modes.ProductPhoto},
		{"ingredients_photo", c.Camera.Modes.IngredientsPhoto},
	} {
		if m.def.CaptureQuality < 0 || m.def.CaptureQuality > 1 {
			errs = append(errs, fmt.Sprintf("camera.modes.%s.capture_quality must be between 0 and 1", m.name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// TakeoverGrace returns the lease takeover grace period as a Duration.
func (c *CameraConfig) TakeoverGrace() time.Duration {
	return time.Duration(c.TakeoverGraceMS) * time.Millisecond
}

// StaleLease returns the stale lease threshold as a Duration.
func (c *CameraConfig) StaleLease() time.Duration {
	return time.Duration(c.StaleLeaseMS) * time.Millisecond
}

// EscalationWindow returns the reset escalation window as a Duration.
func (c *CameraConfig) EscalationWindow() time.Duration {
	return time.Duration(c.EscalationWindowMS) * time.Millisecond
}

// Warmup returns the post-reset warm-up delay as a Duration.
func (c *CameraConfig) Warmup() time.Duration {
	return time.Duration(c.WarmupMS) * time.Millisecond
}

// SlowTransition returns the slow-transition threshold as a Duration.
func (c *CameraConfig) SlowTransition() time.Duration {
	return time.Duration(c.SlowTransitionMS) * time.Millisecond
}

// ListenerTTL returns the event listener lifetime bound as a Duration.
func (c *CameraConfig) ListenerTTL() time.Duration {
	return time.Duration(c.ListenerTTLMinutes) * time.Minute
}

// Window returns the scan-rate observation window as a Duration.
func (c *DegradationConfig) Window() time.Duration {
	return time.Duration(c.WindowMS) * time.Millisecond
}

// CheckInterval returns the degradation evaluation interval as a Duration.
func (c *DegradationConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMS) * time.Millisecond
}
