package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Lumen Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Fleet     FleetConfig     `yaml:"fleet"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Engine    EngineConfig    `yaml:"engine"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// FleetConfig contains settings for the backing fleet service (REST).
type FleetConfig struct {
	// BaseURL is the root of the fleet service API, without a trailing slash.
	// Example: "http://localhost:5000"
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token presented on every request.
	// Session management and token refresh are external concerns; Lumen Core
	// only carries the credential it is given.
	Token string `yaml:"token"`

	// RequestTimeout bounds every synchronous call to the fleet service,
	// in seconds. Timed-out calls are treated as unreachable.
	RequestTimeout int `yaml:"request_timeout"`

	// SnapshotInterval is how often the full fleet snapshot is pulled,
	// in seconds.
	SnapshotInterval int `yaml:"snapshot_interval"`

	// RateLimit caps outbound requests per second to the fleet service.
	// Zero disables client-side throttling.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the burst size for the outbound rate limiter.
	RateBurst int `yaml:"rate_burst"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// EngineConfig contains settings for the synchronization engine itself.
type EngineConfig struct {
	// ReconcileTick is the schedule reconciler interval, in seconds.
	ReconcileTick int `yaml:"reconcile_tick"`

	// DispatchTimeout bounds a single command dispatch, in seconds.
	DispatchTimeout int `yaml:"dispatch_timeout"`

	// DefaultDim is the dim level applied by ON schedules that carry no
	// explicit target (0-100).
	DefaultDim int `yaml:"default_dim"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// InfluxDBConfig contains InfluxDB connection settings for the optional
// telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMEN_SECTION_KEY
// For example: LUMEN_FLEET_TOKEN, LUMEN_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Fleet: FleetConfig{
			BaseURL:          "http://localhost:5000",
			RequestTimeout:   10,
			SnapshotInterval: 30,
			RateLimit:        10,
			RateBurst:        20,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumen-core",
			},
			QoS:         1,
			TopicPrefix: "lamp",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Engine: EngineConfig{
			ReconcileTick:   10,
			DispatchTimeout: 10,
			DefaultDim:      50,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUMEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Fleet service
	if v := os.Getenv("LUMEN_FLEET_BASE_URL"); v != "" {
		cfg.Fleet.BaseURL = v
	}
	if v := os.Getenv("LUMEN_FLEET_TOKEN"); v != "" {
		cfg.Fleet.Token = v
	}

	// MQTT
	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LUMEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Fleet validation
	if c.Fleet.BaseURL == "" {
		errs = append(errs, "fleet.base_url is required")
	} else if strings.HasSuffix(c.Fleet.BaseURL, "/") {
		errs = append(errs, "fleet.base_url must not end with a slash")
	}
	if c.Fleet.SnapshotInterval < 1 {
		errs = append(errs, "fleet.snapshot_interval must be at least 1 second")
	}
	if c.Fleet.RequestTimeout < 1 {
		errs = append(errs, "fleet.request_timeout must be at least 1 second")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	} else if strings.ContainsAny(c.MQTT.TopicPrefix, "+#/") {
		errs = append(errs, "mqtt.topic_prefix must be a single topic level without wildcards")
	}

	// Engine validation
	if c.Engine.ReconcileTick < 1 {
		errs = append(errs, "engine.reconcile_tick must be at least 1 second")
	}
	if c.Engine.DefaultDim < 0 || c.Engine.DefaultDim > 100 {
		errs = append(errs, "engine.default_dim must be between 0 and 100")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSnapshotInterval returns the snapshot pull interval as a Duration.
func (c *Config) GetSnapshotInterval() time.Duration {
	return time.Duration(c.Fleet.SnapshotInterval) * time.Second
}

// GetRequestTimeout returns the fleet request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Fleet.RequestTimeout) * time.Second
}

// GetReconcileTick returns the schedule reconciler tick as a Duration.
func (c *Config) GetReconcileTick() time.Duration {
	return time.Duration(c.Engine.ReconcileTick) * time.Second
}

// GetDispatchTimeout returns the command dispatch timeout as a Duration.
func (c *Config) GetDispatchTimeout() time.Duration {
	return time.Duration(c.Engine.DispatchTimeout) * time.Second
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
